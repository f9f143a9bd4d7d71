package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"safetyportal/internal/ports"
)

// conn resolves the handle a repository call runs on: the transaction stored
// in ctx by the unit of work, or the root pool.
type conn struct {
	db *gorm.DB
}

func (c conn) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return c.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

// inTx runs fn on the ambient transaction, opening one when ctx carries none.
func (c conn) inTx(ctx context.Context, fn func(db *gorm.DB) error) error {
	if ports.TxFromContext(ctx) != nil {
		db, err := c.dbFromContext(ctx)
		if err != nil {
			return err
		}
		return fn(db)
	}
	return c.db.WithContext(ctx).Transaction(fn)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
