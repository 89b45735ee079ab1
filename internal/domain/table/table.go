// Package table implements the comma-separated record store used for database
// exports and decrypted result sets.
//
// The format deliberately has no quoting on input: sqlcmd writes raw
// ciphertext and binary-as-string values, so a quote character inside a field
// must never change column alignment. Embedded commas are therefore not
// representable in parsed input.
package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParse is returned when text cannot be turned into a usable table.
var ErrParse = errors.New("unparsable table")

// Well-known column names.
const (
	ColID          = "ID"
	ColUSN         = "USN"
	ColUsername    = "Username"
	ColPassword    = "Password"
	ColPlaintext   = "Plaintext"
	ColDescription = "Description"
	ColMethod      = "Method"
	ColVisible     = "Visible"
)

// ExportHeader is the column layout of a raw database export.
var ExportHeader = []string{ColID, ColUSN, ColUsername, ColPassword, ColDescription, ColVisible}

// Table is an ordered set of rows with named columns. Thread compatible.
type Table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// New returns an empty table with the given header.
func New(header []string) *Table {
	h := append([]string(nil), header...)
	index := make(map[string]int, len(h))
	for i, name := range h {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	return &Table{header: h, index: index}
}

// Parse builds a table from text. If header is nil the first non-blank line
// is the header, otherwise every line is data. CR bytes are dropped and blank
// lines skipped. A result with no header or no data rows is an ErrParse.
func Parse(text string, header []string) (*Table, error) {
	text = strings.ReplaceAll(text, "\r", "")

	var t *Table
	if header != nil {
		if len(header) == 0 {
			return nil, fmt.Errorf("%w: empty header", ErrParse)
		}
		t = New(header)
	}

	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if t == nil {
			t = New(fields)
			continue
		}
		t.rows = append(t.rows, fields)
	}

	if t == nil {
		return nil, fmt.Errorf("%w: no header row", ErrParse)
	}
	if len(t.rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrParse)
	}
	return t, nil
}

// Header returns a copy of the column names.
func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

// HasColumn reports whether the header names the column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns a view of data row i.
func (t *Table) Row(i int) Row {
	return Row{t: t, fields: t.rows[i]}
}

// AppendRow adds a data row. Values map positionally onto the header.
func (t *Table) AppendRow(values ...string) {
	t.rows = append(t.rows, append([]string(nil), values...))
}

// ColumnValues returns the named column for every row. Absent values are "".
func (t *Table) ColumnValues(name string) []string {
	out := make([]string, len(t.rows))
	for i := range t.rows {
		out[i], _ = t.Row(i).Get(name)
	}
	return out
}

// Unique returns the distinct values of a column in first-appearance order.
// Absent values are included as "".
func (t *Table) Unique(name string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range t.ColumnValues(name) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// UniqueCount is len(Unique(name)).
func (t *Table) UniqueCount(name string) int {
	return len(t.Unique(name))
}

// HasIdentities reports whether the column yields a usable set of identities:
// at least one distinct value, the first of which is present.
func (t *Table) HasIdentities(name string) bool {
	u := t.Unique(name)
	return len(u) >= 1 && u[0] != ""
}

// Serialize renders the header and rows, one per line, each terminated by
// "\n". Fields holding a comma or newline are double-quoted so the output
// stays a valid CSV document; every other field is written verbatim.
func (t *Table) Serialize() string {
	var b strings.Builder
	writeLine(&b, t.header)
	for _, r := range t.rows {
		writeLine(&b, r)
	}
	return b.String()
}

func writeLine(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		if strings.ContainsAny(f, ",\n") {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(f, `"`, `""`))
			b.WriteByte('"')
			continue
		}
		b.WriteString(f)
	}
	b.WriteByte('\n')
}

// Row is a read-only view of one data row.
type Row struct {
	t      *Table
	fields []string
}

// Get returns the named value. ok is false when the column is unknown, the
// row is too short to hold it, or the value is empty.
func (r Row) Get(name string) (string, bool) {
	i, ok := r.t.index[name]
	if !ok || i >= len(r.fields) {
		return "", false
	}
	v := r.fields[i]
	return v, v != ""
}

// Value returns the named value or "" when absent.
func (r Row) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

// StripNUL removes embedded NUL bytes. All other bytes are kept as-is.
func StripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
