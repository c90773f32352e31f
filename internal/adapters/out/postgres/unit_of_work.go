// Package postgres holds the node's vault: the unit of work over the output
// records and order heads, and the schema migrations. A UnitOfWork is not
// shared between goroutines.
package postgres

import (
	"context"

	"orderchain/internal/adapters/out/postgres/recordrepo"
	"orderchain/internal/core/ports"

	"gorm.io/gorm"
)

var (
	_ ports.UnitOfWorkFactory = (*GormUnitOfWorkFactory)(nil)
	_ ports.UnitOfWork        = (*GormUnitOfWork)(nil)
)

// GormUnitOfWorkFactory hands out units of work over one connection pool.
// The factory itself is safe for concurrent use; the units it creates are not.
type GormUnitOfWorkFactory struct {
	db *gorm.DB
}

// NewGormUnitOfWorkFactory wraps the vault database opened by the caller.
//
// Example:
//
//	db, err := gorm.Open(postgresdriver.Open(cfg.DSN()), &gorm.Config{})
//	if err != nil {
//	    return fmt.Errorf("connect to database: %w", err)
//	}
//	factory := postgres.NewGormUnitOfWorkFactory(db)
//	acceptor, err := peer.NewAcceptor(identity, factory, logger)
func NewGormUnitOfWorkFactory(db *gorm.DB) *GormUnitOfWorkFactory {
	return &GormUnitOfWorkFactory{db: db}
}

func (f *GormUnitOfWorkFactory) Create() ports.UnitOfWork {
	return &GormUnitOfWork{db: f.db}
}

// GormUnitOfWork wraps at most one open gorm transaction.
type GormUnitOfWork struct {
	db *gorm.DB
	tx *gorm.DB
}

// Begin opens a transaction. A second Begin joins the open one, so a caller
// that already began may pass the unit down to code that begins again.
//
// Example:
//
//	uow := factory.Create()
//	if err := uow.Begin(ctx); err != nil {
//	    return err
//	}
//	defer func() {
//	    _ = uow.Rollback(ctx)
//	}()
func (uow *GormUnitOfWork) Begin(ctx context.Context) error {
	if uow.tx != nil {
		return nil
	}
	tx := uow.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	uow.tx = tx
	return nil
}

// Commit makes the appended records and the moved head visible together. It
// returns gorm.ErrInvalidTransaction when no transaction is active, and the
// unit may be begun again afterwards.
//
// Example:
//
//	if err := uow.RecordRepository().Append(ctx, tx); err != nil {
//	    return err
//	}
//	return uow.Commit(ctx)
func (uow *GormUnitOfWork) Commit(_ context.Context) error {
	if uow.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	tx := uow.tx
	uow.tx = nil
	return tx.Commit().Error
}

// Rollback discards everything appended since Begin. It returns
// gorm.ErrInvalidTransaction when no transaction is active, in particular
// after a successful Commit. Deferred calls drop that error:
//
//	defer func() {
//	    _ = uow.Rollback(ctx)
//	}()
func (uow *GormUnitOfWork) Rollback(_ context.Context) error {
	if uow.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	tx := uow.tx
	uow.tx = nil
	return tx.Rollback().Error
}

// RecordRepository is bound to the active transaction, or to the plain
// connection when none is active.
func (uow *GormUnitOfWork) RecordRepository() ports.RecordRepository {
	if uow.tx != nil {
		return recordrepo.NewGormRecordRepository(uow.tx)
	}
	return recordrepo.NewGormRecordRepository(uow.db)
}
