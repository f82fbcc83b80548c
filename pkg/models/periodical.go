package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	CategoryMagazines = "Magazines"
	CategoryComics    = "Comics"
	CategoryNews      = "News"
	CategoryArticles  = "Articles"
)

// Periodical is a catalog record for an imported issue file. The file at
// Filepath is owned by this record; a cover file, when present, is owned by
// the record that references it.
type Periodical struct {
	bun.BaseModel `bun:"table:periodicals,alias:p"`

	ID            int       `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ISSN          *string   `json:"issn,omitempty"`
	Title         string    `bun:",nullzero" json:"title"`
	Publisher     *string   `json:"publisher,omitempty"`
	Language      string    `bun:",nullzero" json:"language"`
	IssueDate     time.Time `json:"issue_date"`
	Filepath      string    `bun:"file_path,nullzero" json:"file_path"`
	CoverPath     *string   `bun:"cover_path" json:"cover_path,omitempty"`
	ExtraMetadata string    `bun:"extra_metadata,nullzero" json:"-"`

	// ExtraMetadataParsed holds the decoded extra_metadata column. It carries
	// opaque fields such as category, special_edition, and OCR hints.
	ExtraMetadataParsed map[string]any `bun:"-" json:"extra_metadata,omitempty"`
}

func (p *Periodical) UnmarshalExtraMetadata() error {
	if p.ExtraMetadata == "" {
		return nil
	}
	p.ExtraMetadataParsed = map[string]any{}
	err := json.Unmarshal([]byte(p.ExtraMetadata), &p.ExtraMetadataParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (p *Periodical) MarshalExtraMetadata() error {
	if p.ExtraMetadataParsed == nil {
		return nil
	}
	data, err := json.Marshal(p.ExtraMetadataParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	p.ExtraMetadata = string(data)
	return nil
}

// Category returns the category stored in extra metadata, defaulting to
// Magazines when absent.
func (p *Periodical) Category() string {
	if p.ExtraMetadataParsed != nil {
		if c, ok := p.ExtraMetadataParsed["category"].(string); ok && c != "" {
			return c
		}
	}
	return CategoryMagazines
}

// IsSpecialEdition reports whether this issue was flagged as a special
// edition at import time. Special editions are never grouped with regular
// issues during duplicate detection.
func (p *Periodical) IsSpecialEdition() bool {
	if p.ExtraMetadataParsed == nil {
		return false
	}
	v, ok := p.ExtraMetadataParsed["special_edition"].(bool)
	return ok && v
}
