package files

import (
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"
)

// previewLimit bounds the head-of-file preview returned by ad-hoc
// queries on text files.
const previewLimit = 500

// extractText returns the inline index text for an indexable file
// type. Invalid UTF-8 yields no extract; the blob stays authoritative.
func extractText(fileType string, data []byte) (string, bool) {
	if !indexableFileTypes[fileType] {
		return "", false
	}
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

// summarizeCSV parses the content and reports headers and data row
// count.
func summarizeCSV(content string) (*CSVSummary, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return &CSVSummary{Headers: []string{}, RowCount: 0}, nil
	}
	return &CSVSummary{
		Headers:  records[0],
		RowCount: len(records) - 1,
	}, nil
}

// previewText returns the head of a text file, truncated on a rune
// boundary.
func previewText(content string) string {
	if len(content) <= previewLimit {
		return content
	}
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}
