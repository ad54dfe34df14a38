package itests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"RestJSON/internal"
	"RestJSON/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const testDBName = "restjson_test"

// DeriveTestDSN points baseDSN at the test database and at the
// "postgres" maintenance database used to create and drop it.
func DeriveTestDSN(baseDSN string) (testDSN, adminDSN string, err error) {
	u, e := url.Parse(baseDSN)
	if e != nil {
		return "", "", fmt.Errorf("parse DSN: %w", e)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", "", errors.New("only URL DSN supported: postgres://...")
	}

	// remote hosts are refused
	if host := u.Hostname(); host != "localhost" && host != "127.0.0.1" {
		return "", "", fmt.Errorf("refuse non-local host for tests: %s", host)
	}

	u.Path = "/" + testDBName
	testDSN = u.String()

	u.Path = "/postgres"
	adminDSN = u.String()

	return testDSN, adminDSN, nil
}

func CreateTestDatabase(adminDSN, dbName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	var exists bool
	if err := conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname=$1)`, dbName,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = conn.ExecContext(ctx, `CREATE DATABASE `+pqIdent(dbName))
	return err
}

func DropTestDatabase(adminDSN, dbName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, _ = conn.ExecContext(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`, dbName)

	_, err = conn.ExecContext(ctx, `DROP DATABASE IF EXISTS `+pqIdent(dbName))
	return err
}

func pqIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func applyMigrationsFromDir(testDSN string) error {
	root, err := internal.FindRepoRoot()
	if err != nil {
		return fmt.Errorf("repo root not found: %w", err)
	}
	abs, err := filepath.Abs(filepath.Join(root, "migrations"))
	if err != nil {
		return fmt.Errorf("abs migrations: %w", err)
	}
	// file:// needs an absolute path with forward slashes
	src := "file://" + filepath.ToSlash(abs)

	m, err := migrate.New(src, testDSN)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// SetupTestDB creates and migrates the test database and connects to it.
// teardown closes the pool and drops the database.
func SetupTestDB(ctx context.Context, baseDSN string) (ex *db.PgxExecutor, teardown func() error, err error) {
	testDSN, adminDSN, err := DeriveTestDSN(baseDSN)
	if err != nil {
		return nil, nil, err
	}
	if os.Getenv("APP_ENV") == "production" {
		return nil, nil, errors.New("APP_ENV=production, aborting tests")
	}

	if err := CreateTestDatabase(adminDSN, testDBName); err != nil {
		return nil, nil, fmt.Errorf("create DB %q: %w (dsn %s)", testDBName, err, redactDSN(baseDSN))
	}
	log.Printf("test DB %q created", testDBName)

	if err := applyMigrationsFromDir(testDSN); err != nil {
		_ = DropTestDatabase(adminDSN, testDBName)
		return nil, nil, err
	}
	log.Printf("migrations applied to test DB")

	ex, err = db.InitPostgres(ctx, testDSN)
	if err != nil {
		_ = DropTestDatabase(adminDSN, testDBName)
		return nil, nil, fmt.Errorf("InitPostgres failed: %w (dsn %s)", err, redactDSN(baseDSN))
	}

	teardown = func() error {
		ex.Close()
		return DropTestDatabase(adminDSN, testDBName)
	}
	return ex, teardown, nil
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	username := u.User.Username()
	if username == "" {
		return dsn
	}
	u.User = url.UserPassword(username, "******")
	return u.String()
}
