package core

import "context"

type txKey struct{}

// ContextWithTransaction returns a context carrying tx. Pools that own tx
// nest into it instead of acquiring another connection.
func ContextWithTransaction(ctx context.Context, tx *Transaction) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TransactionFromContext returns the transaction stored by ContextWithTransaction.
func TransactionFromContext(ctx context.Context) (*Transaction, bool) {
	tx, ok := ctx.Value(txKey{}).(*Transaction)
	return tx, ok && tx != nil
}
