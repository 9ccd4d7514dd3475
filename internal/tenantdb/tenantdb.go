// Package tenantdb opens per-tenant MySQL connections from a
// TenantSpec, either from an explicit connection string or from its
// discrete host/user/password/database fields.
package tenantdb

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Spec describes how to reach a single tenant's database. Either
// ConnectionString is set, or Host, User and Database are (Password may
// be empty); when ConnectionString is set the discrete fields are ignored.
type Spec struct {
	TenantID         string
	TenantName       string
	Host             string
	User             string
	Password         string
	Database         string
	ConnectionString string
}

// DSN builds a go-sql-driver/mysql data source name for spec,
// preferring an explicit connection string when present.
func DSN(spec Spec) (string, error) {
	if spec.ConnectionString != "" {
		return ensureParseTime(spec.ConnectionString), nil
	}
	if spec.User == "" || spec.Database == "" || spec.Host == "" {
		return "", fmt.Errorf("tenantdb: tenant %s missing host, user or database and no connection_string given", spec.TenantID)
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s", spec.User, spec.Password, spec.Host, spec.Database)
	return ensureParseTime(dsn), nil
}

func ensureParseTime(dsn string) string {
	if strings.Contains(strings.ToLower(dsn), "parsetime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// Open builds the DSN for spec and opens a connection pool sized for a
// single tenant worker: migrations run one script at a time per
// tenant, so a small pool is enough.
func Open(spec Spec) (*sql.DB, error) {
	dsn, err := DSN(spec)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("tenantdb: open tenant %s: %w", spec.TenantID, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
