package executor

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/mirajehossain/tenantmigrator/internal/tenantdb"
)

func newMockExecutor(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	ex := NewMySQL()
	ex.Opener = func(spec tenantdb.Spec) (*sql.DB, error) { return db, nil }
	return ex, mock
}

func TestExecute_CommitsOnSuccess(t *testing.T) {
	ex, mock := newMockExecutor(t)
	spec := tenantdb.Spec{TenantID: "t1"}

	mock.ExpectBegin()
	mock.ExpectExec("ALTER TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := ex.Execute(context.Background(), spec, "ALTER TABLE foo ADD bar INT;"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecute_RollsBackOnFailure(t *testing.T) {
	ex, mock := newMockExecutor(t)
	spec := tenantdb.Spec{TenantID: "t1"}

	mock.ExpectBegin()
	mock.ExpectExec("ALTER TABLE").WillReturnError(sql.ErrTxDone)
	mock.ExpectRollback()

	if err := ex.Execute(context.Background(), spec, "ALTER TABLE foo ADD bar INT;"); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecute_ReusesPoolPerTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	ex := NewMySQL()
	var opens int
	ex.Opener = func(spec tenantdb.Spec) (*sql.DB, error) {
		opens++
		return db, nil
	}
	spec := tenantdb.Spec{TenantID: "t1"}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("SELECT 2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := ex.Execute(context.Background(), spec, "SELECT 1;"); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if err := ex.Execute(context.Background(), spec, "SELECT 2;"); err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if opens != 1 {
		t.Fatalf("expected pool to be opened once, got %d", opens)
	}
}
