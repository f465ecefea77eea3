package database

import (
	"strings"
	"testing"
	"time"

	drivermysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User: "talenthub",
		Name: "talenthub",
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	expected := "host=localhost port=5432 user=talenthub dbname=talenthub application_name=talenthub connect_timeout=5 sslmode=disable"
	if dsn != expected {
		t.Fatalf("expected %q, got %q", expected, dsn)
	}
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options: map[string]string{
			"sslmode":     "require",
			"search_path": "public",
		},
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	if !containsAll(
		dsn,
		"host=db.example.com",
		"port=6543",
		"user=user",
		"dbname=db",
		"password=pass",
		"sslmode=require",
		"search_path=public",
	) {
		t.Fatalf("dsn missing expected components: %q", dsn)
	}
}

func TestBuildPostgresDSNPrefersExplicitDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://u:p@db/talenthub"})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}
	if dsn != "postgres://u:p@db/talenthub" {
		t.Fatalf("expected explicit dsn to win, got %q", dsn)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	if _, err := buildPostgresDSN(Config{}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func TestBuildPostgresDSNQuotesCredentials(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "hiring team",
		Name:     "talenthub",
		Password: `it's a \secret`,
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	parsed, err := pgconn.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn %q: %v", dsn, err)
	}
	if parsed.User != "hiring team" || parsed.Password != `it's a \secret` || parsed.Database != "talenthub" {
		t.Fatalf("credentials did not survive quoting: %q", dsn)
	}
	if parsed.RuntimeParams["application_name"] != "talenthub" {
		t.Fatalf("expected application_name runtime param, got %v", parsed.RuntimeParams)
	}
}

func TestBuildPostgresDSNRejectsConnectionFieldsInOptions(t *testing.T) {
	_, err := buildPostgresDSN(Config{
		User:    "user",
		Name:    "db",
		Options: map[string]string{"password": "sneaky"},
	})
	if err == nil {
		t.Fatalf("expected options to be unable to override connection fields")
	}
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User: "talenthub",
		Name: "talenthub",
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	if !strings.HasPrefix(dsn, "talenthub@tcp(127.0.0.1:3306)/talenthub?") || !containsAll(dsn, "charset=utf8mb4", "parseTime=true") {
		t.Fatalf("unexpected dsn %q", dsn)
	}

	parsed, err := drivermysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if !parsed.ParseTime || parsed.Loc != time.UTC {
		t.Fatalf("expected parseTime in UTC, got parseTime=%v loc=%v", parsed.ParseTime, parsed.Loc)
	}
}

func TestBuildMySQLDSNWithOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "s3cr@t:/pw",
		Name:     "db",
		Host:     "db.example.com",
		Port:     3307,
		Options: map[string]string{
			"tls": "skip-verify",
		},
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	parsed, err := drivermysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("parse dsn %q: %v", dsn, err)
	}
	if parsed.User != "user" || parsed.Passwd != "s3cr@t:/pw" {
		t.Fatalf("credentials did not survive formatting: %q", dsn)
	}
	if parsed.Addr != "db.example.com:3307" || parsed.DBName != "db" {
		t.Fatalf("unexpected address in %q", dsn)
	}
	if parsed.TLSConfig != "skip-verify" || !parsed.ParseTime {
		t.Fatalf("options not applied: %q", dsn)
	}
}

func TestBuildMySQLDSNRejectsInvalidOptions(t *testing.T) {
	_, err := buildMySQLDSN(Config{
		User:    "user",
		Name:    "db",
		Options: map[string]string{"parseTime": "maybe"},
	})
	if err == nil {
		t.Fatalf("expected the driver to reject an invalid option")
	}
}

func TestConfigurePoolAppliesLimits(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := configurePool(db, PoolConfig{MaxOpenConns: 7, MaxIdleConns: 2, ConnMaxLifetime: time.Minute}); err != nil {
		t.Fatalf("configure pool: %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 7 {
		t.Fatalf("expected 7 max open connections, got %d", got)
	}
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	if _, err := buildMySQLDSN(Config{Host: "localhost"}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func containsAll(value string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(value, part) {
			return false
		}
	}
	return true
}
