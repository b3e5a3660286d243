// Package inmemdb is a process-local implementation of the repositories, used by tests and for
// running the API without a database server.
package inmemdb

import (
	"context"
	"sync"

	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/core/participant"
	"github.com/questtrack/questtrack/core/project"
	"github.com/questtrack/questtrack/core/user"
)

type (
	DB struct {
		mutex sync.RWMutex
		tables

		// serializes transactions
		txMutex sync.Mutex
	}

	tables struct {
		users        map[int]user.User
		projects     map[int]project.Project
		participants map[int]participant.Participant
		pkCount      map[string]int
	}
)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() tables {
	return tables{
		users:        make(map[int]user.User),
		projects:     make(map[int]project.Project),
		participants: make(map[int]participant.Participant),
		pkCount:      make(map[string]int),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.users {
		v.Roles = append([]string(nil), v.Roles...)
		c.users[k] = v
	}
	for k, v := range t.projects {
		c.projects[k] = v
	}
	for k, v := range t.participants {
		c.participants[k] = v
	}
	for k, v := range t.pkCount {
		c.pkCount[k] = v
	}
	return c
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK(table string) int {
	db.pkCount[table]++
	return db.pkCount[table]
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.tables = newTables()
}

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

func NewTransactor(db *DB) *transactor {
	return &transactor{db: db}
}

// WithinTx snapshots every table before running fn and restores the snapshot if fn fails.
// Writes made outside of a transaction while one is running are lost on rollback.
func (tx *transactor) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	tx.db.txMutex.Lock()
	defer tx.db.txMutex.Unlock()

	tx.db.mutex.RLock()
	snapshot := tx.db.tables.clone()
	tx.db.mutex.RUnlock()

	restore := func() {
		tx.db.mutex.Lock()
		tx.db.tables = snapshot
		tx.db.mutex.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if err = fn(nil); err != nil {
		restore()
		return err
	}
	return nil
}
