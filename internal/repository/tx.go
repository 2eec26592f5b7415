package repository

import (
	"context"
	"errors"
	"fmt"

	"lexpost/internal/apperr"

	"gorm.io/gorm"
)

type txKey struct{}

// TxManager runs multi-step writes in one database transaction.
type TxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// RunInTransaction commits when fn returns nil and rolls back otherwise.
// Repositories called with the ctx passed to fn join the transaction.
// Nested calls run under a savepoint of the outer transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	db := m.db.WithContext(ctx)
	if outer, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		db = outer
	}
	return db.Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

// ErrStaleVersion is returned when an optimistic update matched no row.
var ErrStaleVersion = errors.New("stale version")

func notFound(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %v not found", entity, id)
	}
	return fmt.Errorf("load %s: %w", entity, err)
}
