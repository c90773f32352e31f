// Package jobs provides the scheduled background tasks of a node.
//
// Jobs are built on github.com/robfig/cron/v3 with a leading seconds field.
//
// # Available Jobs
//
// HeadAuditJob compares every order head stored in the local vault with the
// ledger's unconsumed head. A mismatch means this node missed a finalized
// transaction: the gauge orderchain_stale_heads is set and the order is
// logged. Configured WithRepair, the job replays the ledger's transactions
// of the order through the acceptor, which verifies each one before storing.
//
// # Usage
//
//	audit, err := jobs.NewHeadAuditJob(uowFactory, ledger, cfg.HeadAuditSchedule, logger,
//		jobs.WithRepair(ledgerHistory, acceptor))
//	if err != nil {
//		return err
//	}
//	jobManager := jobs.NewJobManager(audit, logger)
//	if err := jobManager.StartAll(); err != nil {
//		return err
//	}
//	defer jobManager.StopAll()
package jobs
