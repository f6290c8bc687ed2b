package entity

import (
	"encoding/json"
	"testing"
)

func TestEmptyExtractionJSON(t *testing.T) {
	b, err := json.Marshal(EmptyExtraction())
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"fields":{}}` {
		t.Errorf("got %s", b)
	}
	if !EmptyExtraction().IsEmpty() {
		t.Error("expected empty")
	}
}

func TestRowResultKeepsEmptyData(t *testing.T) {
	d := ExtractedData{
		Fields: map[string]any{"total": int64(42)},
		Table: &TableData{
			Header:  "H",
			AllRows: "\nA1",
			Footer:  "F",
			Rows:    []RowResult{{Row: "A1", Data: map[string]any{}}},
		},
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"fields":{"total":42},"table":{"header":"H","all_rows":"\nA1","footer":"F","rows":[{"row":"A1","data":{}}]}}`
	if string(b) != want {
		t.Errorf("got  %s\nwant %s", b, want)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := ExtractedData{
		Fields: map[string]any{"a": "1"},
		Table:  &TableData{Rows: []RowResult{{Row: "r", Data: map[string]any{"q": "2"}}}},
	}
	cp := orig.Clone()
	cp.Fields["a"] = "changed"
	cp.Table.Rows[0].Data["q"] = "changed"
	cp.Table.Header = "changed"

	if orig.Fields["a"] != "1" || orig.Table.Rows[0].Data["q"] != "2" || orig.Table.Header != "" {
		t.Errorf("clone aliased the original: %+v", orig)
	}
}

func TestParseJobExtraction(t *testing.T) {
	j := &ParseJob{}
	d, err := j.Extraction()
	if err != nil || !d.IsEmpty() {
		t.Fatalf("expected empty extraction, got %+v, %v", d, err)
	}

	j.ExtractedJSON = json.RawMessage(`{"fields":{"total":42}}`)
	d, err = j.Extraction()
	if err != nil {
		t.Fatal(err)
	}
	if d.Fields["total"] != float64(42) {
		t.Errorf("total = %#v", d.Fields["total"])
	}

	j.ExtractedJSON = json.RawMessage(`{`)
	if _, err := j.Extraction(); err == nil {
		t.Error("expected decode error")
	}
}
