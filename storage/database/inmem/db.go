// Package inmemdb is a map backed store implementing every repository.
// It mirrors the relational constraints (unique columns, unique (student, category) pairs).
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/category"
	"github.com/trezcool/dossier/core/submission"
	"github.com/trezcool/dossier/core/user"
)

type tables struct {
	users       map[int]user.User
	profiles    map[int]user.Profile // by user id
	categories  map[int]category.Category
	submissions map[int]submission.Submission
}

type DB struct {
	mutex sync.RWMutex
	txMu  sync.Mutex // serializes transactions
	pk    map[string]int
	tables
}

var _ core.Transactor = (*DB)(nil) // interface compliance check

func NewDB() *DB {
	return &DB{
		pk: make(map[string]int),
		tables: tables{
			users:       make(map[int]user.User),
			profiles:    make(map[int]user.Profile),
			categories:  make(map[int]category.Category),
			submissions: make(map[int]submission.Submission),
		},
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID(table string) int {
	db.pk[table]++
	return db.pk[table]
}

func (db *DB) snapshot() (tables, map[string]int) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	snap := tables{
		users:       make(map[int]user.User, len(db.users)),
		profiles:    make(map[int]user.Profile, len(db.profiles)),
		categories:  make(map[int]category.Category, len(db.categories)),
		submissions: make(map[int]submission.Submission, len(db.submissions)),
	}
	for k, v := range db.users {
		snap.users[k] = v
	}
	for k, v := range db.profiles {
		snap.profiles[k] = v
	}
	for k, v := range db.categories {
		snap.categories[k] = v
	}
	for k, v := range db.submissions {
		snap.submissions[k] = v
	}
	pk := make(map[string]int, len(db.pk))
	for k, v := range db.pk {
		pk[k] = v
	}
	return snap, pk
}

// WithinTx runs fn and restores every table to its prior state if fn fails.
// Writes made outside a transaction while fn runs are lost on rollback.
func (db *DB) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	snap, pk := db.snapshot()
	if err := fn(nil); err != nil {
		db.mutex.Lock()
		db.tables, db.pk = snap, pk
		db.mutex.Unlock()
		return err
	}
	return nil
}

// Reset empties every table.
func (db *DB) Reset() {
	fresh := NewDB()
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.tables, db.pk = fresh.tables, fresh.pk
}
