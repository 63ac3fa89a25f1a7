package store

import "database/sql"

// DB exposes the internal *sql.DB for test helpers.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetCommitHook intercepts transaction commits, letting tests exercise
// failure paths (e.g. a switchover whose commit fails) without
// corrupting a real database. Pass nil to restore normal commits.
func (s *Store) SetCommitHook(fn func(tx *sql.Tx) error) {
	s.hooks.commit = fn
}

// SetExecHook intercepts non-transactional writes. Pass nil to restore.
func (s *Store) SetExecHook(fn func(db interface {
	Exec(query string, args ...any) (sql.Result, error)
}, query string, args ...any) (sql.Result, error)) {
	if fn == nil {
		s.hooks.exec = nil
		return
	}
	s.hooks.exec = func(db execer, query string, args ...any) (sql.Result, error) {
		return fn(db, query, args...)
	}
}
