package ports

import "context"

// Tx is an opaque transaction handle; infrastructure picks the concrete type (*gorm.DB).
type Tx interface{}

// UnitOfWork defines a transaction boundary. Returning an error from fn rolls
// back, returning nil commits.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}

// InTx runs fn inside uow, or directly when no unit of work is wired.
func InTx(ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) error) error {
	if uow == nil {
		return fn(ctx)
	}
	return uow.WithTx(ctx, fn)
}
