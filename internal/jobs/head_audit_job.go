package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"
	"orderchain/internal/pkg/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// DefaultHeadAuditSchedule runs the audit every thirty seconds. The
	// expression has a leading seconds field.
	DefaultHeadAuditSchedule = "*/30 * * * * *"

	auditTimeout = 20 * time.Second
)

// AuditReport is the outcome of one head audit.
type AuditReport struct {
	Checked int
	// Stale lists the orders whose local head still differs from the
	// ledger's unconsumed head after any repair.
	Stale []kernel.UUID
	// Repaired lists the orders brought up to the ledger's head by replaying
	// its transactions.
	Repaired []kernel.UUID
}

// HeadAuditOption configures a HeadAuditJob.
type HeadAuditOption func(*HeadAuditJob)

// WithRepair makes the audit replay the ledger's transactions of a stale
// order through applier, which verifies them like any distributed
// transaction.
func WithRepair(history ports.LedgerHistory, applier ports.TransactionApplier) HeadAuditOption {
	return func(j *HeadAuditJob) {
		j.history = history
		j.applier = applier
	}
}

// HeadAuditJob compares every local head with the ledger. A local head that
// the ledger already consumed means this node missed a distributed
// transaction; proposals built on it would be refused at commit.
type HeadAuditJob struct {
	uowFactory ports.UnitOfWorkFactory
	ledger     ports.Ledger
	history    ports.LedgerHistory
	applier    ports.TransactionApplier
	schedule   string
	cron       *cron.Cron
	logger     *zap.Logger
}

func NewHeadAuditJob(
	uowFactory ports.UnitOfWorkFactory,
	ledger ports.Ledger,
	schedule string,
	logger *zap.Logger,
	opts ...HeadAuditOption,
) (*HeadAuditJob, error) {
	if uowFactory == nil {
		return nil, errs.NewValueIsRequiredError("uowFactory")
	}
	if ledger == nil {
		return nil, errs.NewValueIsRequiredError("ledger")
	}
	if schedule == "" {
		schedule = DefaultHeadAuditSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &HeadAuditJob{
		uowFactory: uowFactory,
		ledger:     ledger,
		schedule:   schedule,
		cron:       cron.New(cron.WithSeconds()),
		logger:     logger.With(zap.String("component", "head_audit_job")),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Start schedules the audit.
func (j *HeadAuditJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if _, err := j.Audit(ctx); err != nil {
			j.logger.Error("head audit failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", j.schedule, err)
	}
	j.cron.Start()
	j.logger.Info("head audit job started", zap.String("schedule", j.schedule))
	return nil
}

// Stop waits for a running audit to finish.
func (j *HeadAuditJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("head audit job stopped")
}

// Audit checks every local head once and updates the stale heads gauge.
func (j *HeadAuditJob) Audit(ctx context.Context) (AuditReport, error) {
	heads, err := j.uowFactory.Create().RecordRepository().Heads(ctx)
	if err != nil {
		return AuditReport{}, err
	}

	report := AuditReport{Checked: len(heads)}
	for _, local := range heads {
		stale, err := j.isStale(ctx, local)
		if err != nil {
			return report, err
		}
		if !stale {
			continue
		}
		if j.repair(ctx, local) {
			report.Repaired = append(report.Repaired, local.OrderID())
			continue
		}
		report.Stale = append(report.Stale, local.OrderID())
	}

	metrics.StaleHeads.Set(float64(len(report.Stale)))
	if len(report.Stale) > 0 || len(report.Repaired) > 0 {
		j.logger.Warn("head audit found stale heads",
			zap.Int("checked", report.Checked),
			zap.Int("stale", len(report.Stale)),
			zap.Int("repaired", len(report.Repaired)),
		)
	}
	return report, nil
}

func (j *HeadAuditJob) isStale(ctx context.Context, local *order.Record) (bool, error) {
	head, err := j.ledger.Head(ctx, local.OrderID())
	if errors.Is(err, errs.ErrObjectNotFound) {
		// The vault holds a version the ledger never notarized.
		j.logger.Error("local order unknown to the ledger", zap.String("order_id", local.OrderID().String()))
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if head.IsEqual(local.VersionRef()) {
		return false, nil
	}
	j.logger.Warn("stale local head",
		zap.String("order_id", local.OrderID().String()),
		zap.Uint64("local_version", local.Version()),
		zap.Stringer("local_ref", local.VersionRef()),
		zap.Stringer("ledger_ref", head),
	)
	return true, nil
}

// repair replays the order's notarized transactions oldest first. Versions
// already stored are accepted silently by the applier.
func (j *HeadAuditJob) repair(ctx context.Context, local *order.Record) bool {
	if j.history == nil || j.applier == nil {
		return false
	}
	log := j.logger.With(zap.String("order_id", local.OrderID().String()))
	txs, err := j.history.Transactions(ctx, local.OrderID())
	if err != nil {
		log.Error("failed to read ledger history", zap.Error(err))
		return false
	}
	if len(txs) == 0 {
		return false
	}
	for _, tx := range txs {
		if err = j.applier.Apply(ctx, tx); err != nil {
			log.Error("failed to replay transaction",
				zap.Uint64("version", tx.Record.Version()),
				zap.Error(err),
			)
			return false
		}
	}
	repaired, err := j.uowFactory.Create().RecordRepository().Head(ctx, local.OrderID())
	if err != nil {
		log.Error("failed to reload local head", zap.Error(err))
		return false
	}
	if stale, err := j.isStale(ctx, repaired); err != nil || stale {
		return false
	}
	log.Info("stale head repaired", zap.Uint64("version", repaired.Version()))
	return true
}
