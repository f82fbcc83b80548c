package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

// Tracking is a user's declared intent to acquire a periodical. Exactly one
// of TrackAllEditions / TrackNewOnly / neither is meaningful; "neither"
// means only explicitly selected editions are tracked.
type Tracking struct {
	bun.BaseModel `bun:"table:periodical_tracking,alias:t"`

	ID                 int       `bun:",pk,nullzero" json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	OLID               string    `bun:"olid,nullzero" json:"olid"`
	Title              string    `bun:",nullzero" json:"title"`
	Publisher          *string   `json:"publisher,omitempty"`
	ISSN               *string   `json:"issn,omitempty"`
	Language           string    `bun:",nullzero" json:"language"`
	Category           string    `bun:",nullzero" json:"category"`
	FirstPublishYear   *int      `json:"first_publish_year,omitempty"`
	TotalEditionsKnown int       `json:"total_editions_known"`
	TrackAllEditions   bool      `json:"track_all_editions"`
	TrackNewOnly       bool      `json:"track_new_only"`
	SelectedEditions   string    `bun:",nullzero" json:"-"`
	SelectedYears      string    `bun:",nullzero" json:"-"`
	DeleteFromClient   bool      `bun:"delete_from_client_on_completion" json:"delete_from_client_on_completion"`
	Metadata           string    `bun:"periodical_metadata,nullzero" json:"-"`

	SelectedEditionsParsed map[string]bool `bun:"-" json:"selected_editions,omitempty"`
	SelectedYearsParsed    []int           `bun:"-" json:"selected_years,omitempty"`
	MetadataParsed         map[string]any  `bun:"-" json:"periodical_metadata,omitempty"`
}

func (t *Tracking) UnmarshalData() error {
	if t.SelectedEditions != "" {
		t.SelectedEditionsParsed = map[string]bool{}
		if err := json.Unmarshal([]byte(t.SelectedEditions), &t.SelectedEditionsParsed); err != nil {
			return errors.WithStack(err)
		}
	}
	if t.SelectedYears != "" {
		t.SelectedYearsParsed = []int{}
		if err := json.Unmarshal([]byte(t.SelectedYears), &t.SelectedYearsParsed); err != nil {
			return errors.WithStack(err)
		}
	}
	if t.Metadata != "" {
		t.MetadataParsed = map[string]any{}
		if err := json.Unmarshal([]byte(t.Metadata), &t.MetadataParsed); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (t *Tracking) MarshalData() error {
	if t.SelectedEditionsParsed != nil {
		data, err := json.Marshal(t.SelectedEditionsParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		t.SelectedEditions = string(data)
	}
	if t.SelectedYearsParsed != nil {
		data, err := json.Marshal(t.SelectedYearsParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		t.SelectedYears = string(data)
	}
	if t.MetadataParsed != nil {
		data, err := json.Marshal(t.MetadataParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		t.Metadata = string(data)
	}
	return nil
}

// TracksAnything reports whether this record has any tracking mode active,
// meaning the auto-download task should consider it.
func (t *Tracking) TracksAnything() bool {
	if t.TrackAllEditions || t.TrackNewOnly {
		return true
	}
	for _, selected := range t.SelectedEditionsParsed {
		if selected {
			return true
		}
	}
	return false
}

// YearSelected reports whether the given year passes the selected-years
// filter. An empty filter admits every year.
func (t *Tracking) YearSelected(year int) bool {
	if len(t.SelectedYearsParsed) == 0 {
		return true
	}
	for _, y := range t.SelectedYearsParsed {
		if y == year {
			return true
		}
	}
	return false
}
