// Package executor runs one SQL script against one tenant database: a
// single transaction per script, committed on success and rolled back
// on any failure. It obtains and releases its own connection so the
// worker never holds a tenant connection across a callback suspension
// point.
package executor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mirajehossain/tenantmigrator/internal/tenantdb"
)

// ScriptExecutor applies one script's content to the tenant described
// by spec. Implementations must wrap execution in a transaction and
// release any connection they acquire on every exit path.
type ScriptExecutor interface {
	Execute(ctx context.Context, spec tenantdb.Spec, content string) error
}

// MySQL is the production ScriptExecutor: it opens a short-lived pool
// per tenant spec, acquires one connection per call, and runs content
// inside a single transaction.
type MySQL struct {
	// Opener is overridable in tests; defaults to tenantdb.Open.
	Opener func(spec tenantdb.Spec) (*sql.DB, error)

	pools map[string]*sql.DB
}

func NewMySQL() *MySQL {
	return &MySQL{Opener: tenantdb.Open, pools: make(map[string]*sql.DB)}
}

// pool returns (opening if necessary) the connection pool for spec,
// reused across scripts within the same tenant worker lifetime.
func (m *MySQL) pool(spec tenantdb.Spec) (*sql.DB, error) {
	if db, ok := m.pools[spec.TenantID]; ok {
		return db, nil
	}
	opener := m.Opener
	if opener == nil {
		opener = tenantdb.Open
	}
	db, err := opener(spec)
	if err != nil {
		return nil, err
	}
	m.pools[spec.TenantID] = db
	return db, nil
}

func (m *MySQL) Execute(ctx context.Context, spec tenantdb.Spec, content string) error {
	db, err := m.pool(spec)
	if err != nil {
		return fmt.Errorf("executor: open tenant %s: %w", spec.TenantID, err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("executor: acquire connection for tenant %s: %w", spec.TenantID, err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("executor: begin tx for tenant %s: %w", spec.TenantID, err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if _, err := tx.ExecContext(ctx, content); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("executor: tenant %s: %w", spec.TenantID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("executor: commit for tenant %s: %w", spec.TenantID, err)
	}
	return nil
}

// Close releases every pool opened by this executor instance.
func (m *MySQL) Close() error {
	var first error
	for _, db := range m.pools {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
