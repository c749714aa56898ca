package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/edugest/core"
)

// counter hands out per-school sequence values from the school_counters table.
type counter struct {
	repository
}

var _ core.Counter = (*counter)(nil) // interface compliance check

func NewCounter(exec core.DBExecutor) *counter {
	return &counter{repository{exec: exec}}
}

// NextValue atomically increments and returns the (school, name, year) counter.
func (c counter) NextValue(ctx context.Context, schoolID, name string, year int, exec ...core.DBExecutor) (int64, error) {
	var n int64
	q := psql.Select().Column(sq.Expr("next_school_counter(?, ?, ?)", schoolID, name, year))
	err := c.get(ctx, exec, &n, q)
	if err != nil {
		return 0, errors.Wrap(err, "incrementing counter")
	}
	return n, nil
}
