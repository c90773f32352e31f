package ledgerrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	_ ports.Ledger        = (*GormLedger)(nil)
	_ ports.LedgerHistory = (*GormLedger)(nil)
)

// GormLedger implements ports.Ledger on PostgreSQL. The head row is moved
// with a compare-and-set update and every consumed reference is recorded
// under a unique constraint, so concurrent submissions racing on one version
// resolve to exactly one commit, across processes.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) Submit(ctx context.Context, tx proposal.Transaction) (kernel.VersionRef, error) {
	if err := tx.Record.Validate(); err != nil {
		return kernel.VersionRef{}, err
	}
	raw, err := json.Marshal(tx.Wire())
	if err != nil {
		return kernel.VersionRef{}, err
	}

	rec := tx.Record
	ref := rec.VersionRef()
	commit := CommitDTO{
		VersionRef:  ref.String(),
		OrderID:     rec.OrderID().Google(),
		Version:     rec.Version(),
		Transaction: raw,
	}
	if tx.ConsumedRef != nil {
		consumed := tx.ConsumedRef.String()
		commit.ConsumedRef = &consumed
	}

	err = l.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if tx.ConsumedRef == nil {
			head := HeadDTO{OrderID: commit.OrderID, HeadRef: commit.VersionRef, Version: commit.Version}
			if err := db.Create(&head).Error; err != nil {
				return err
			}
		} else {
			result := db.Model(&HeadDTO{}).
				Where("order_id = ? AND head_ref = ?", commit.OrderID, *commit.ConsumedRef).
				Updates(map[string]any{"head_ref": commit.VersionRef, "version": commit.Version})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("%w: %s is not the head of order %s", ports.ErrConflict, tx.ConsumedRef, rec.OrderID())
			}
		}
		return db.Create(&commit).Error
	})
	if err != nil {
		return kernel.VersionRef{}, classify(err)
	}
	return ref, nil
}

func (l *GormLedger) Head(ctx context.Context, orderID kernel.UUID) (kernel.VersionRef, error) {
	if err := orderID.Validate(); err != nil {
		return kernel.VersionRef{}, err
	}
	var head HeadDTO
	if err := l.db.WithContext(ctx).First(&head, "order_id = ?", orderID.Google()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return kernel.VersionRef{}, errs.NewObjectNotFoundError("order", orderID.String())
		}
		return kernel.VersionRef{}, fmt.Errorf("%w: %w", ports.ErrUnavailable, err)
	}
	return kernel.VersionRefFromString(head.HeadRef)
}

// Transactions returns the notarized transactions of an order by version.
func (l *GormLedger) Transactions(ctx context.Context, orderID kernel.UUID) ([]proposal.Transaction, error) {
	var commits []CommitDTO
	err := l.db.WithContext(ctx).
		Where("order_id = ?", orderID.Google()).
		Order("version").
		Find(&commits).Error
	if err != nil {
		return nil, err
	}
	out := make([]proposal.Transaction, 0, len(commits))
	for _, c := range commits {
		var wire proposal.WireTransaction
		if err = json.Unmarshal(c.Transaction, &wire); err != nil {
			return nil, err
		}
		tx, parseErr := proposal.ParseTransaction(wire)
		if parseErr != nil {
			return nil, parseErr
		}
		out = append(out, tx)
	}
	return out, nil
}

func classify(err error) error {
	if errors.Is(err, ports.ErrConflict) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", ports.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%w: %w", ports.ErrUnavailable, err)
}
