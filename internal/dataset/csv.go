package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

type csvReader struct{}

func (csvReader) CanRead(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvReader) Scan(path string, _ Options, fn func(record []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	delim, err := sniffDelimiter(path, br)
	if err != nil {
		return err
	}
	r := csv.NewReader(br)
	r.Comma = delim
	r.FieldsPerRecord = -1
	// Stray quotes inside unquoted fields are data (27" monitor), not syntax errors.
	// Field values are passed through untouched so snapshots stay exact copies.
	r.LazyQuotes = true
	r.ReuseRecord = true

	width := -1
	for line := 1; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse csv: %w", err)
		}
		if width < 0 {
			width = len(rec)
			if line == 1 && len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			}
		} else if len(rec) > width {
			return fmt.Errorf("parse csv: record %d has %d fields, header has %d", line, len(rec), width)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// sniffDelimiter picks ',' ';' or tab by counting unquoted occurrences on the first line.
// .tsv files are always tab separated.
func sniffDelimiter(path string, br *bufio.Reader) (rune, error) {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t', nil
	}
	head, err := br.Peek(64 << 10)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("read csv: %w", err)
	}
	if i := strings.IndexByte(string(head), '\n'); i >= 0 {
		head = head[:i]
	}
	counts := map[rune]int{}
	inQuote := false
	for _, c := range string(head) {
		switch c {
		case '"':
			inQuote = !inQuote
		case ',', ';', '\t':
			if !inQuote {
				counts[c]++
			}
		}
	}
	best := ','
	for _, c := range []rune{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best, nil
}
