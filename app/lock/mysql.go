package lock

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

type MySQLLocker struct {
	db    *sql.DB
	mu    sync.Mutex
	conns map[string]*sql.Conn
}

// NewMySQLLocker constructs an advisory-lock run guard. The lock is tied to a
// dedicated connection and released with it, so the TTL argument is ignored;
// MySQL drops the lock if the holding connection dies.
func NewMySQLLocker(db *sql.DB) *MySQLLocker {
	return &MySQLLocker{
		db:    db,
		conns: make(map[string]*sql.Conn),
	}
}

// Acquire obtains a named advisory lock without waiting (GET_LOCK timeout 0).
func (l *MySQLLocker) Acquire(ctx context.Context, key string, _ time.Duration) error {
	l.mu.Lock()
	if _, exists := l.conns[key]; exists {
		l.mu.Unlock()
		return ErrAlreadyHeld
	}
	l.mu.Unlock()

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return err
	}

	var acquired int
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return err
	}
	if acquired != 1 {
		_ = conn.Close()
		return ErrNotAcquired
	}

	l.mu.Lock()
	l.conns[key] = conn
	l.mu.Unlock()

	return nil
}

// Release frees the advisory lock and closes its connection.
func (l *MySQLLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	conn, ok := l.conns[key]
	if ok {
		delete(l.conns, key)
	}
	l.mu.Unlock()

	if !ok {
		return nil
	}

	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", key); err != nil {
		return err
	}
	return nil
}
