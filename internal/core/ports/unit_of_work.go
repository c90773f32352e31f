package ports

import (
	"context"
)

// UnitOfWorkFactory hands out one UnitOfWork per vault write.
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UnitOfWork scopes the vault writes of one applied transaction. Appending
// the output record and moving the order head happen inside it, so a reader
// never sees a record without its head.
//
//	uow := factory.Create()
//	if err := uow.Begin(ctx); err != nil {
//	    return err
//	}
//	defer uow.Rollback(ctx)
//
//	if err := uow.RecordRepository().Append(ctx, tx); err != nil {
//	    return err
//	}
//	return uow.Commit(ctx)
type UnitOfWork interface {
	Begin(ctx context.Context) error

	// Commit fails when Begin was not called.
	Commit(ctx context.Context) error

	// Rollback fails when no transaction is open, also after Commit. The
	// deferred call above ignores that error.
	Rollback(ctx context.Context) error

	// RecordRepository is bound to the open transaction, or to the plain
	// connection outside of one.
	RecordRepository() RecordRepository
}
