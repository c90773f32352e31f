// Package commands contains the operations that change order state.
// Every command goes through the lifecycle orchestrator: nothing is written
// locally until the ledger committed the transition.
package commands

import (
	"context"

	"orderchain/internal/core/application/commit"
	"orderchain/internal/core/application/lifecycle"
)

// OrderExecutor runs one lifecycle request to completion.
// *lifecycle.Orchestrator satisfies it.
type OrderExecutor interface {
	Execute(ctx context.Context, req lifecycle.Request) (*commit.FinalizedRecord, error)
}
