package services

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitlink-platform/fitlink-backend/internal/repository"
)

// txStores bundles tx-scoped repositories so a multi-step state change either
// commits as a whole or leaves no trace.
type txStores struct {
	sessions     sessionStore
	requests     changeRequestStore
	transactions transactionStore
	entitlements entitlementCreator
	packages     packageReader
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(txStores) error) error
}

type pgxTxRunner struct {
	db *pgxpool.Pool
}

func (r pgxTxRunner) WithinTx(ctx context.Context, fn func(txStores) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = fn(txStores{
		sessions:     repository.NewSessionRepository(tx),
		requests:     repository.NewChangeRequestRepository(tx),
		transactions: repository.NewTransactionRepository(tx),
		entitlements: repository.NewEntitlementRepository(tx),
		packages:     repository.NewPackageRepository(tx),
	})
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
