package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Credential is the single-user credential row. The table holds at most one
// record.
type Credential struct {
	bun.BaseModel `bun:"table:credentials,alias:c"`

	ID           int       `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Username     string    `bun:",nullzero" json:"username"`
	PasswordHash string    `bun:",nullzero" json:"-"`
}
