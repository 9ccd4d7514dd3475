package tenantdb

import "testing"

func TestDSN_PrefersConnectionString(t *testing.T) {
	spec := Spec{TenantID: "t1", ConnectionString: "user:pass@tcp(db1:3306)/app"}
	dsn, err := DSN(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != "user:pass@tcp(db1:3306)/app?parseTime=true" {
		t.Fatalf("unexpected dsn: %s", dsn)
	}
}

func TestDSN_BuildsFromFields(t *testing.T) {
	spec := Spec{TenantID: "t1", Host: "db1:3306", User: "root", Password: "secret", Database: "app"}
	dsn, err := DSN(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != "root:secret@tcp(db1:3306)/app?parseTime=true" {
		t.Fatalf("unexpected dsn: %s", dsn)
	}
}

func TestDSN_DoesNotDoubleAppendParseTime(t *testing.T) {
	spec := Spec{TenantID: "t1", ConnectionString: "user:pass@tcp(db1:3306)/app?parseTime=true"}
	dsn, err := DSN(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != "user:pass@tcp(db1:3306)/app?parseTime=true" {
		t.Fatalf("unexpected dsn: %s", dsn)
	}
}

func TestDSN_MissingFieldsIsError(t *testing.T) {
	spec := Spec{TenantID: "t1"}
	if _, err := DSN(spec); err == nil {
		t.Fatal("expected error for incomplete spec")
	}
}
