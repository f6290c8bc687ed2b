package server

import (
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/joseph-ayodele/drmparse/internal/services/parsing"
)

const receiptDRM = `
identifiers: ["receipt"]
fields:
  total: "TOTAL (\\d+)"
  store: "STORE (\\w+)"
types:
  fields:
    total: int
uniqueness_fields: ["total"]
`

const brokenDRM = `
identifiers: ["broken"]
fields:
  x: "("
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, fsys fstest.MapFS) *parsing.Service {
	t.Helper()
	svc, err := parsing.NewServiceFS(fsys, 1024, discardLogger())
	if err != nil {
		t.Fatalf("NewServiceFS: %v", err)
	}
	return svc
}
