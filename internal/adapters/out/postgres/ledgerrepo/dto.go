// Package ledgerrepo is a PostgreSQL notary: the ordering collaborator that
// lets every version reference be consumed at most once.
package ledgerrepo

import (
	"time"

	"github.com/google/uuid"
)

// HeadDTO is the unconsumed version of one order.
type HeadDTO struct {
	OrderID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	HeadRef   string    `gorm:"type:char(64);not null"`
	Version   uint64    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (HeadDTO) TableName() string {
	return "ledger_heads"
}

// CommitDTO is one notarized transaction. ConsumedRef is unique, which is
// what makes a double spend fail at the database.
type CommitDTO struct {
	VersionRef  string    `gorm:"type:char(64);primaryKey"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null"`
	Version     uint64    `gorm:"not null"`
	ConsumedRef *string   `gorm:"type:char(64);unique"`
	Transaction []byte    `gorm:"type:jsonb;not null"`
	CommittedAt time.Time `gorm:"autoCreateTime"`
}

func (CommitDTO) TableName() string {
	return "ledger_commits"
}
