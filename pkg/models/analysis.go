package models

import "sort"

// AnalyzeResult is the raw output of the document-AI collaborator.
type AnalyzeResult struct {
	FullText  string                // All text in reading order
	Fields    map[string]FieldValue // Named key/value fields (entity types, form field labels)
	Tables    []Table
	PageCount int
}

type FieldValue struct {
	Content    string
	Confidence float32
}

// Field returns the trimmed content of the first present key.
func (r *AnalyzeResult) Field(keys ...string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	for _, k := range keys {
		if v, ok := r.Fields[k]; ok && v.Content != "" {
			return v.Content
		}
	}
	return ""
}

// Table is a set of cells addressed by row and column index.
type Table struct {
	Cells []TableCell
}

type TableCell struct {
	RowIndex    int
	ColumnIndex int
	Content     string
}

// Rows groups the cells by row index, ordered by row then column.
// Missing columns are filled with empty strings.
func (t Table) Rows() [][]string {
	byRow := make(map[int]map[int]string)
	maxCol := -1
	for _, c := range t.Cells {
		if byRow[c.RowIndex] == nil {
			byRow[c.RowIndex] = make(map[int]string)
		}
		byRow[c.RowIndex][c.ColumnIndex] = c.Content
		if c.ColumnIndex > maxCol {
			maxCol = c.ColumnIndex
		}
	}

	rowIdx := make([]int, 0, len(byRow))
	for r := range byRow {
		rowIdx = append(rowIdx, r)
	}
	sort.Ints(rowIdx)

	rows := make([][]string, 0, len(rowIdx))
	for _, r := range rowIdx {
		row := make([]string, maxCol+1)
		for col, content := range byRow[r] {
			row[col] = content
		}
		rows = append(rows, row)
	}
	return rows
}
