package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

// SearchResult is a provider-returned candidate for a tracked title. Rows
// are retained as an audit trail; they are not authoritative state.
type SearchResult struct {
	bun.BaseModel `bun:"table:search_results,alias:sr"`

	ID              int        `bun:",pk,nullzero" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	Provider        string     `bun:",nullzero" json:"provider"`
	Query           string     `bun:",nullzero" json:"query"`
	Title           string     `bun:",nullzero" json:"title"`
	URL             string     `bun:"url,nullzero" json:"url"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	RawMetadata     string     `bun:"raw_metadata,nullzero" json:"-"`
	GroupKey        *string    `bun:"fuzzy_match_group_id" json:"fuzzy_match_group_id,omitempty"`
	PeriodicalID    *int       `bun:"magazine_id" json:"magazine_id,omitempty"`

	RawMetadataParsed map[string]any `bun:"-" json:"raw_metadata,omitempty"`
}

func (sr *SearchResult) UnmarshalRawMetadata() error {
	if sr.RawMetadata == "" {
		return nil
	}
	sr.RawMetadataParsed = map[string]any{}
	err := json.Unmarshal([]byte(sr.RawMetadata), &sr.RawMetadataParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (sr *SearchResult) MarshalRawMetadata() error {
	if sr.RawMetadataParsed == nil {
		return nil
	}
	data, err := json.Marshal(sr.RawMetadataParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	sr.RawMetadata = string(data)
	return nil
}

// MetadataString returns the first non-empty string value among the given
// keys in the raw metadata. The orchestrator uses this for tagged access to
// edition identifiers (key precedence: olid, then edition_id).
func (sr *SearchResult) MetadataString(keys ...string) string {
	if sr.RawMetadataParsed == nil {
		return ""
	}
	for _, key := range keys {
		if v, ok := sr.RawMetadataParsed[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
