package core

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
	}

	// TxRunner runs fn inside a single transaction; any error returned by fn rolls everything back.
	TxRunner interface {
		RunInTx(ctx context.Context, fn func(exec DBExecutor) error) error
	}

	// Counter hands out per-school, per-year sequence values (matricules, receipts, serials).
	Counter interface {
		NextValue(ctx context.Context, schoolID, name string, year int, exec ...DBExecutor) (int64, error)
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// CleanOrderings drops orderings on fields that are not in allowed.
func CleanOrderings(orderings []DBOrdering, allowed ...string) []DBOrdering {
	if len(orderings) == 0 {
		return nil
	}
	ok := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		ok[a] = struct{}{}
	}
	cleaned := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if _, found := ok[ord.Field]; found {
			cleaned = append(cleaned, ord)
		}
	}
	return cleaned
}

// GetExec returns the first executor of execs if any, def otherwise.
func GetExec(def DBExecutor, execs []DBExecutor) DBExecutor {
	if len(execs) > 0 && execs[0] != nil {
		return execs[0]
	}
	return def
}

// InTx runs fn inside the caller's transaction when execs carries one, in a new transaction otherwise.
func InTx(ctx context.Context, runner TxRunner, execs []DBExecutor, fn func(exec DBExecutor) error) error {
	if len(execs) > 0 && execs[0] != nil {
		return fn(execs[0])
	}
	return runner.RunInTx(ctx, fn)
}
