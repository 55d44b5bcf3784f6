// Package parser reads watch-history CSV exports into raw ingestion rows.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"watch-history/pkg/domain"
)

// Delimiter is the field separator used by the exports.
const Delimiter = ';'

var (
	ErrEmptyInput = errors.New("csv input is empty")
	ErrNoRows     = errors.New("csv input has a header but no rows")
)

// ParseError reports malformed CSV input.
type ParseError struct {
	Line int // 1-based line in the input, 0 when not tied to a line
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseCSV reads a semicolon separated export with a header line.
//
// Headers are camelCased ("Start Time" becomes "startTime") and matched to
// RawIngestionRow fields; unknown columns are ignored. Quotes are relaxed,
// rows may be shorter or longer than the header, cells are trimmed and
// blank lines are skipped. A column missing from a short row stays nil.
func ParseCSV(r io.Reader) ([]domain.RawIngestionRow, error) {
	reader := csv.NewReader(r)
	reader.Comma = Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	var rows []domain.RawIngestionRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapReadError(err)
		}
		if isBlank(record) {
			continue
		}
		rows = append(rows, mapRecord(header, record))
	}

	if len(rows) == 0 {
		return nil, &ParseError{Err: ErrNoRows}
	}
	return rows, nil
}

func readHeader(reader *csv.Reader) ([]string, error) {
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil, &ParseError{Err: ErrEmptyInput}
		}
		if err != nil {
			return nil, wrapReadError(err)
		}
		if isBlank(record) {
			continue
		}

		header := make([]string, len(record))
		for i, column := range record {
			if i == 0 {
				column = strings.TrimPrefix(column, "\ufeff")
			}
			header[i] = NormalizeHeader(column)
		}
		return header, nil
	}
}

// NormalizeHeader trims a column name and camelCases it: each whitespace
// run is dropped and the character after it upper-cased, and the first
// character is lower-cased.
func NormalizeHeader(column string) string {
	column = strings.TrimSpace(column)
	if column == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(column))
	upperNext := false
	for _, r := range column {
		if unicode.IsSpace(r) {
			upperNext = true
			continue
		}
		if upperNext {
			r = unicode.ToUpper(r)
			upperNext = false
		}
		b.WriteRune(r)
	}

	out := b.String()
	first, size := utf8.DecodeRuneInString(out)
	return string(unicode.ToLower(first)) + out[size:]
}

func mapRecord(header, record []string) domain.RawIngestionRow {
	var row domain.RawIngestionRow
	for i, column := range header {
		if i >= len(record) {
			break
		}
		value := strings.TrimSpace(record[i])

		switch column {
		case "startTime":
			row.StartTime = value
		case "profileName":
			row.ProfileName = &value
		case "country":
			row.Country = &value
		case "bookmark":
			row.Bookmark = &value
		case "latestBookmark":
			row.LatestBookmark = &value
		case "supplementalVideoType":
			row.SupplementalVideoType = &value
		case "attributes":
			row.Attributes = &value
		case "deviceType":
			row.DeviceType = &value
		case "title":
			row.Title = &value
		}
	}
	return row
}

// wrapReadError turns a csv reader failure into a ParseError, keeping the
// line the reader reported.
func wrapReadError(err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Line: csvErr.StartLine, Err: csvErr.Err}
	}
	return &ParseError{Err: err}
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
