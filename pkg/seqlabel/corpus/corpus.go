// Package corpus loads the raw resume corpus used by the labeling pipeline.
//
// The input convention is one resume per paragraph-delimited block: records
// are separated by one or more blank lines, and a record's index is its
// position in the file. Indices are stable across runs as long as the input
// file does not change, which is what makes checkpoint-by-index resumption
// valid.
package corpus

import (
	"fmt"
	"os"
	"strings"
)

// Record is one resume's raw text plus its stable position in the corpus.
// Records are immutable once read.
type Record struct {
	Index int
	Text  string
}

// Load reads a paragraph-delimited corpus file and returns its records in
// file order. Blank-only blocks are skipped and do not consume an index.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	return Split(string(data)), nil
}

// Split breaks raw corpus text into records. Exported separately so tests
// and in-memory callers can bypass the filesystem.
func Split(text string) []Record {
	// Normalize line endings first so CRLF input delimits the same way.
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var records []Record
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		records = append(records, Record{Index: len(records), Text: block})
	}
	return records
}
