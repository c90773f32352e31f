package recordrepo

import (
	"context"
	"errors"
	"fmt"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ ports.RecordRepository = (*GormRecordRepository)(nil)

// GormRecordRepository implements ports.RecordRepository using GORM.
type GormRecordRepository struct {
	db *gorm.DB
}

func NewGormRecordRepository(db *gorm.DB) *GormRecordRepository {
	return &GormRecordRepository{db: db}
}

// Append inserts the version and recomputes which version of the order is
// the head. A second version at the same position is reported as a conflict.
func (r *GormRecordRepository) Append(ctx context.Context, tx proposal.Transaction) error {
	if err := tx.Record.Validate(); err != nil {
		return err
	}
	dto, err := fromTransaction(tx)
	if err != nil {
		return err
	}

	db := r.db.WithContext(ctx)
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "version_ref"}},
		DoNothing: true,
	}).Create(&dto).Error
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: order %s version %d", ports.ErrConflict, tx.Record.OrderID(), dto.Version)
		}
		return err
	}

	return db.Exec(`
		UPDATE order_versions
		SET superseded = version < (
			SELECT MAX(version) FROM order_versions WHERE order_id = ?
		)
		WHERE order_id = ?
	`, dto.OrderID, dto.OrderID).Error
}

func (r *GormRecordRepository) Head(ctx context.Context, orderID kernel.UUID) (*order.Record, error) {
	if err := orderID.Validate(); err != nil {
		return nil, err
	}

	var dto OrderVersionDTO
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID.Google()).
		Order("version DESC").
		First(&dto).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("order", orderID.String())
		}
		return nil, err
	}
	return toDomain(dto)
}

func (r *GormRecordRepository) History(ctx context.Context, orderID kernel.UUID) ([]*order.Record, error) {
	if err := orderID.Validate(); err != nil {
		return nil, err
	}

	var dtos []OrderVersionDTO
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID.Google()).
		Order("version ASC").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}
	if len(dtos) == 0 {
		return nil, errs.NewObjectNotFoundError("order", orderID.String())
	}
	return toDomainList(dtos)
}

func (r *GormRecordRepository) Heads(ctx context.Context) ([]*order.Record, error) {
	var dtos []OrderVersionDTO
	err := r.db.WithContext(ctx).
		Where("NOT superseded").
		Order("order_id").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(dtos)
}

func (r *GormRecordRepository) HeadsFor(ctx context.Context, p kernel.Principal) ([]*order.Record, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var dtos []OrderVersionDTO
	err := r.db.WithContext(ctx).
		Where("NOT superseded AND (buyer = @name OR seller = @name OR shipper = @name)",
			map[string]any{"name": p.Name()}).
		Order("order_id").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(dtos)
}

func toDomainList(dtos []OrderVersionDTO) ([]*order.Record, error) {
	records := make([]*order.Record, 0, len(dtos))
	for _, dto := range dtos {
		rec, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
