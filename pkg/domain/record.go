package domain

import "time"

// RawIngestionRow is one parsed line of a watch-history export.
// A nil pointer means the column was absent from the input line.
type RawIngestionRow struct {
	// StartTime is the textual start time as found in the export.
	StartTime string `json:"startTime"`

	// StartedAt takes precedence over StartTime when the caller already
	// holds a parsed timestamp.
	StartedAt time.Time `json:"-"`

	ProfileName           *string `json:"profileName"`
	Country               *string `json:"country"`
	Bookmark              *string `json:"bookmark"`
	LatestBookmark        *string `json:"latestBookmark"`
	SupplementalVideoType *string `json:"supplementalVideoType"`
	Attributes            *string `json:"attributes"`
	DeviceType            *string `json:"deviceType"`
	Title                 *string `json:"title"`
}

// CleanedRecord is a typed, trimmed viewing record.
//
// Title always holds the canonical search key, never the raw export title.
// Metadata is nil when no match was found or the lookup failed.
type CleanedRecord struct {
	StartTime             time.Time
	ProfileName           string
	Country               *string
	Bookmark              *string
	LatestBookmark        *string
	SupplementalVideoType *string
	Attributes            *string
	DeviceType            *string
	Title                 string
	Metadata              *MetadataResult
}

// PersistedRecord is the storage projection of a CleanedRecord for the
// cleaned_data table. id and created_at are assigned by the store.
type PersistedRecord struct {
	StartTime             time.Time       `json:"start_time" bson:"start_time"`
	ProfileName           string          `json:"profile_name" bson:"profile_name"`
	Country               *string         `json:"country" bson:"country"`
	Bookmark              *string         `json:"bookmark" bson:"bookmark"`
	LatestBookmark        *string         `json:"latest_bookmark" bson:"latest_bookmark"`
	SupplementalVideoType *string         `json:"supplemental_video_type" bson:"supplemental_video_type"`
	Attributes            *string         `json:"attributes" bson:"attributes"`
	DeviceType            *string         `json:"device_type" bson:"device_type"`
	Title                 string          `json:"title" bson:"title"`
	Metadata              *MetadataResult `json:"metadata" bson:"metadata"`
}

// IngestSummary is returned to the CLI/HTTP layer after an ingestion call.
type IngestSummary struct {
	Success  bool `json:"success"`
	Inserted int  `json:"inserted"`
}
