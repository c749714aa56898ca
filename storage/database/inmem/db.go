// Package inmemdb implements the core repositories in memory, for tests and demos.
package inmemdb

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/certificate"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/enrollment"
	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/reminder"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/settings"
	"github.com/trezcool/edugest/core/student"
	"github.com/trezcool/edugest/core/user"
)

type (
	// DB holds every table behind a single lock.
	DB struct {
		mutex sync.RWMutex
		tables
	}

	tables struct {
		schools        map[string]school.School
		users          map[string]user.User
		preferences    map[string]settings.Preferences
		system         map[string]string
		classes        map[string]class.Class
		students       map[string]student.Student
		enrollments    map[string]enrollment.Enrollment
		payments       map[string]payment.Payment
		counters       map[counterKey]int64
		certificates   map[string]certificate.Certificate
		configurations map[string]reminder.Configuration
		scheduled      map[string]reminder.Scheduled
	}

	counterKey struct {
		schoolID, name string
		year           int
	}
)

var _ core.TxRunner = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{tables: tables{
		schools:        make(map[string]school.School),
		users:          make(map[string]user.User),
		preferences:    make(map[string]settings.Preferences),
		system:         make(map[string]string),
		classes:        make(map[string]class.Class),
		students:       make(map[string]student.Student),
		enrollments:    make(map[string]enrollment.Enrollment),
		payments:       make(map[string]payment.Payment),
		counters:       make(map[counterKey]int64),
		certificates:   make(map[string]certificate.Certificate),
		configurations: make(map[string]reminder.Configuration),
		scheduled:      make(map[string]reminder.Scheduled),
	}}
}

// rows are stored by value and never mutated in place, so shallow map copies are enough.
func (t tables) clone() tables {
	return tables{
		schools:        maps.Clone(t.schools),
		users:          maps.Clone(t.users),
		preferences:    maps.Clone(t.preferences),
		system:         maps.Clone(t.system),
		classes:        maps.Clone(t.classes),
		students:       maps.Clone(t.students),
		enrollments:    maps.Clone(t.enrollments),
		payments:       maps.Clone(t.payments),
		counters:       maps.Clone(t.counters),
		certificates:   maps.Clone(t.certificates),
		configurations: maps.Clone(t.configurations),
		scheduled:      maps.Clone(t.scheduled),
	}
}

// txExec tells nested service calls they already run inside RunInTx.
// The in-memory repositories never query through it.
type txExec struct {
	core.DBExecutor
}

// RunInTx snapshots the tables and restores them when fn fails or panics.
func (db *DB) RunInTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.mutex.RLock()
	snapshot := db.tables.clone()
	db.mutex.RUnlock()

	rollback := func() {
		db.mutex.Lock()
		db.tables = snapshot
		db.mutex.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = ctx.Err(); err == nil {
		err = fn(txExec{})
	}
	if err != nil {
		rollback()
	}
	return err
}

// NextValue implements core.Counter.
func (db *DB) NextValue(_ context.Context, schoolID, name string, year int, _ ...core.DBExecutor) (int64, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	key := counterKey{schoolID: schoolID, name: name, year: year}
	db.counters[key]++
	return db.counters[key], nil
}

// Reset empties every table.
func (db *DB) Reset() {
	fresh := Open()
	db.mutex.Lock()
	db.tables = fresh.tables
	db.mutex.Unlock()
}

func newID() string {
	return uuid.NewString()
}

func contains(values []string, v string) bool {
	for _, val := range values {
		if strings.EqualFold(val, v) {
			return true
		}
	}
	return false
}

// matches reports whether any of values contains keyword, case-insensitively.
func matches(keyword string, values ...string) bool {
	keyword = strings.ToLower(keyword)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), keyword) {
			return true
		}
	}
	return false
}

// comparer compares two rows on a single field.
type comparer[T any] func(a, b T) int

// sortRows sorts rows on the allowed orderings, falling back to def.
func sortRows[T any](rows []T, ordering []core.DBOrdering, fields map[string]comparer[T], def ...core.DBOrdering) {
	allowed := make([]string, 0, len(fields))
	for f := range fields {
		allowed = append(allowed, f)
	}
	ordering = core.CleanOrderings(ordering, allowed...)
	if len(ordering) == 0 {
		ordering = def
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := fields[ord.Field]
			if !ok {
				continue
			}
			c := cmp(rows[i], rows[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func asc(field string) core.DBOrdering  { return core.DBOrdering{Field: field, Ascending: true} }
func desc(field string) core.DBOrdering { return core.DBOrdering{Field: field} }
