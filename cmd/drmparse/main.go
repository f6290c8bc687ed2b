package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joseph-ayodele/drmparse/internal/common"
	"github.com/joseph-ayodele/drmparse/internal/services/parsing"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	cfg := common.LoadConfig()

	var (
		drmDir  = flag.String("drms", cfg.DRM.Dir, "directory of DRM files (*.yml, *.yaml)")
		in      = flag.String("in", "-", "OCR text file to parse, - for stdin")
		verbose = flag.Bool("v", false, "print outcome, model and uniqueness alongside the data")
		indent  = flag.Bool("indent", true, "indent JSON output")
	)
	flag.Parse()

	// diagnostics go to stderr so stdout stays pure JSON
	logger := common.NewLogger(cfg.Log, os.Stderr)

	text, err := readInput(*in)
	if err != nil {
		printError("Error: reading input: %v\n", err)
		os.Exit(1)
	}

	svc, err := parsing.NewService(*drmDir, 0, logger)
	if err != nil {
		printError("Error: loading DRMs from %s: %v\n", *drmDir, err)
		os.Exit(1)
	}

	res, err := svc.Parse(context.Background(), "cli", string(text))
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	var out any = res.Data
	if *verbose {
		out = map[string]any{
			"outcome":        res.Outcome,
			"model":          res.ModelName(),
			"data":           res.Data,
			"uniqueness":     res.Uniqueness,
			"uniqueness_key": res.UniquenessKey(),
		}
	}

	enc := json.NewEncoder(os.Stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		printError("Error: writing output: %v\n", err)
		os.Exit(1)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
