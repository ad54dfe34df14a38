package itests

import (
	"context"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"RestJSON/internal"
	"RestJSON/internal/auth"
	"RestJSON/internal/config"
	"RestJSON/internal/db"
	"RestJSON/internal/handler"
	"RestJSON/internal/model"
	"RestJSON/internal/permit"
	"RestJSON/internal/resolver"
	"RestJSON/internal/router"
)

var (
	testBaseURL string
	registry    *model.Registry
	pg          *db.PgxExecutor
)

// TestMain runs the package against a throwaway Postgres database. Set
// RESTJSON_ITEST_DSN to a local postgres:// URL to enable it.
func TestMain(m *testing.M) {
	baseDSN := os.Getenv("RESTJSON_ITEST_DSN")
	if baseDSN == "" {
		log.Printf("RESTJSON_ITEST_DSN not set, skipping integration tests")
		os.Exit(0)
	}
	ctx := context.Background()

	ex, teardown, err := SetupTestDB(ctx, baseDSN)
	if err != nil {
		log.Printf("setup test DB failed: %v", err)
		os.Exit(1)
	}
	pg = ex

	root, err := internal.FindRepoRoot()
	if err != nil {
		log.Printf("findRepoRoot failed: %v", err)
		_ = teardown()
		os.Exit(1)
	}
	registry, err = model.InitRegistry(filepath.Join(root, "test_db"), 0, nil)
	if err != nil {
		log.Printf("InitRegistry failed: %v", err)
		_ = teardown()
		os.Exit(1)
	}

	h := &handler.ResourceHandler{
		Registry:   registry,
		Compiler:   resolver.NewCompiler(registry, pg, auth.AllowAll{}),
		Writer:     resolver.NewWriter(pg, auth.AllowAll{}, permit.New()),
		Dispatcher: &handler.Dispatcher{},
	}
	cfg := &config.Config{APIPrefix: "/api", CORS: config.CORSConfig{AllowOrigin: "*"}}
	srv := httptest.NewServer(router.InitRoutes(cfg, h, nil))
	testBaseURL = srv.URL
	log.Printf("HTTP started at %s", testBaseURL)

	code := m.Run()

	srv.Close()
	if err := teardown(); err != nil {
		log.Printf("drop test DB failed: %v", err)
	}
	os.Exit(code)
}
