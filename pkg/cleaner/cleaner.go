// Package cleaner maps raw export rows into typed viewing records.
package cleaner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"watch-history/pkg/domain"
	"watch-history/pkg/title"
)

var (
	ErrEmptyStartTime   = errors.New("start time is empty")
	ErrInvalidStartTime = errors.New("start time is not a recognised date")
)

// startTimeLayouts are tried in order. Layouts without a zone are read as UTC.
var startTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseError reports a row field that could not be converted.
type ParseError struct {
	Row   int // 1-based data row number, 0 when unknown
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: invalid %s %q: %v", e.Row, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Clean converts a raw row into a CleanedRecord without metadata.
// The returned Title is the canonical key to resolve metadata with.
func Clean(row domain.RawIngestionRow) (domain.CleanedRecord, error) {
	startTime, err := parseStartTime(row)
	if err != nil {
		return domain.CleanedRecord{}, err
	}

	return domain.CleanedRecord{
		StartTime:             startTime,
		ProfileName:           strings.TrimSpace(valueOrEmpty(row.ProfileName)),
		Country:               row.Country,
		Bookmark:              row.Bookmark,
		LatestBookmark:        row.LatestBookmark,
		SupplementalVideoType: row.SupplementalVideoType,
		Attributes:            row.Attributes,
		DeviceType:            row.DeviceType,
		Title:                 strings.TrimSpace(title.Normalize(valueOrEmpty(row.Title))),
	}, nil
}

func parseStartTime(row domain.RawIngestionRow) (time.Time, error) {
	if !row.StartedAt.IsZero() {
		return row.StartedAt, nil
	}

	value := strings.TrimSpace(row.StartTime)
	if value == "" {
		return time.Time{}, &ParseError{Field: "startTime", Value: row.StartTime, Err: ErrEmptyStartTime}
	}

	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Field: "startTime", Value: row.StartTime, Err: ErrInvalidStartTime}
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
