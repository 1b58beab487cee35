// Package store persists the upload registry and ledger export archive in
// SQLite. Session state (the live dataset and ledger) stays in memory; the
// store only keeps what an offline reconciler needs later.
package store

import (
	"database/sql"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}
