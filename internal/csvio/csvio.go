// Package csvio reads batch input addresses from CSV and writes batch
// results back as CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/optimode/mailverify"
)

// ErrNoEmailColumn is returned when the header has no "email" column.
var ErrNoEmailColumn = errors.New("csvio: no email column in header")

// ReadEmails returns the values of the email column, matched
// case-insensitively against the header. Rows with an empty email cell are
// kept: they fail input validation like any other bad address.
func ReadEmails(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoEmailColumn
		}
		return nil, fmt.Errorf("csvio: reading header: %w", err)
	}

	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), "email") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrNoEmailColumn
	}

	var emails []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return emails, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csvio: %w", err)
		}
		if col >= len(rec) {
			emails = append(emails, "")
			continue
		}
		emails = append(emails, rec[col])
	}
}

// RowWriter writes mailverify.Row values as CSV. It is not safe for
// concurrent use; mailverify.BatchRunner serializes its calls.
type RowWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

func NewRowWriter(w io.Writer) *RowWriter {
	return &RowWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the header line. WriteRow calls it when needed, so
// it only has to be called directly to produce a header-only file.
func (rw *RowWriter) WriteHeader() error {
	if rw.wroteHeader {
		return nil
	}
	rw.wroteHeader = true
	return rw.write([]string{"Email", "MethodUsed", "Status"})
}

// WriteRow writes row and flushes it, so a crash loses at most the row
// being written.
func (rw *RowWriter) WriteRow(row mailverify.Row) error {
	if err := rw.WriteHeader(); err != nil {
		return err
	}
	return rw.write([]string{row.Email, row.MethodUsed, string(row.Status)})
}

func (rw *RowWriter) write(rec []string) error {
	if err := rw.w.Write(rec); err != nil {
		return fmt.Errorf("csvio: %w", err)
	}
	rw.w.Flush()
	if err := rw.w.Error(); err != nil {
		return fmt.Errorf("csvio: %w", err)
	}
	return nil
}
