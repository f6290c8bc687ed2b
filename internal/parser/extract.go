package parser

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/drmparse/internal/drm"
	"github.com/joseph-ayodele/drmparse/internal/entity"
)

// ExtractFields runs each field pattern once against text. A pattern with
// capture groups yields its first group, otherwise the whole match.
// Fields that do not match, or whose first group did not take part in the
// match, are left out.
func ExtractFields(text string, fields []drm.FieldPattern) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		loc := f.Pattern.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if f.Pattern.NumSubexp() == 0 {
			out[f.Name] = text[loc[0]:loc[1]]
			continue
		}
		if loc[2] < 0 {
			continue
		}
		out[f.Name] = text[loc[2]:loc[3]]
	}
	return out
}

// ExtractTable locates the header and footer independently and returns the
// text between header end and footer start. It returns nil when the model
// has no table or when either boundary is missing. A footer that starts
// before the header ends yields an empty interior.
func ExtractTable(text string, table *drm.Table) *entity.TableData {
	if table == nil {
		return nil
	}
	header := table.Header.FindStringIndex(text)
	footer := table.Footer.FindStringIndex(text)
	if header == nil || footer == nil {
		return nil
	}

	var allRows string
	if footer[0] >= header[1] {
		allRows = text[header[1]:footer[0]]
	}
	return &entity.TableData{
		Header:  text[header[0]:header[1]],
		AllRows: allRows,
		Footer:  text[footer[0]:footer[1]],
	}
}

// TableRows splits allRows at every lineStart match. Each row runs from its
// own match start to the next match start, the last one to the end of
// allRows, and has its newlines removed with no separator inserted.
func TableRows(allRows string, lineStart *regexp.Regexp) []string {
	if allRows == "" || lineStart == nil {
		return []string{}
	}
	locs := lineStart.FindAllStringIndex(allRows, -1)
	rows := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(allRows)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		rows = append(rows, strings.ReplaceAll(allRows[loc[0]:end], "\n", ""))
	}
	return rows
}

// RowGroups captures the named groups of a single row. Groups that did not
// participate are omitted; a row that does not match keeps empty data.
func RowGroups(row string, captures *regexp.Regexp) entity.RowResult {
	res := entity.RowResult{Row: row, Data: map[string]any{}}
	if captures == nil {
		return res
	}
	loc := captures.FindStringSubmatchIndex(row)
	if loc == nil {
		return res
	}
	for i, name := range captures.SubexpNames() {
		if i == 0 || name == "" || loc[2*i] < 0 {
			continue
		}
		res.Data[name] = row[loc[2*i]:loc[2*i+1]]
	}
	return res
}

// Extract runs field and table extraction over already pre-processed text.
func Extract(text string, m *drm.Model) entity.ExtractedData {
	data := entity.ExtractedData{Fields: map[string]any{}}
	for k, v := range ExtractFields(text, m.Fields) {
		data.Fields[k] = v
	}

	if !m.HasTable() {
		return data
	}
	table := ExtractTable(text, m.Table)
	if table == nil {
		return data
	}
	for _, row := range TableRows(table.AllRows, m.Table.LineStart) {
		table.Rows = append(table.Rows, RowGroups(row, m.Table.InlineNamedGroupCaptures))
	}
	data.Table = table
	return data
}
