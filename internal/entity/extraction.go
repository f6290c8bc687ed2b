package entity

// ExtractedData is the structured result of parsing one OCR text.
// Field and row values are strings until typed, then int64, float64 or an
// ISO-8601 string.
type ExtractedData struct {
	Fields map[string]any `json:"fields"`
	Table  *TableData     `json:"table,omitempty"`
}

// TableData is the tabular section found between a header and a footer.
type TableData struct {
	Header  string      `json:"header"`
	AllRows string      `json:"all_rows"`
	Footer  string      `json:"footer"`
	Rows    []RowResult `json:"rows,omitempty"`
}

// RowResult is one logical table row and its named-group captures.
type RowResult struct {
	Row  string         `json:"row"`
	Data map[string]any `json:"data"`
}

// EmptyExtraction is the result returned when no model applies.
func EmptyExtraction() ExtractedData {
	return ExtractedData{Fields: map[string]any{}}
}

// IsEmpty reports whether nothing was extracted.
func (d ExtractedData) IsEmpty() bool {
	return len(d.Fields) == 0 && d.Table == nil
}

// Clone returns a deep copy; values are immutable scalars so maps are the
// only state to duplicate.
func (d ExtractedData) Clone() ExtractedData {
	out := ExtractedData{Fields: cloneMap(d.Fields)}
	if d.Table != nil {
		t := *d.Table
		if d.Table.Rows != nil {
			t.Rows = make([]RowResult, len(d.Table.Rows))
			for i, r := range d.Table.Rows {
				t.Rows[i] = RowResult{Row: r.Row, Data: cloneMap(r.Data)}
			}
		}
		out.Table = &t
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
