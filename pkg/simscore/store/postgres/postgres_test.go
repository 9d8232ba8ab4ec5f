package postgres

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/cognicore/simscore/pkg/simscore/store"
	"github.com/cognicore/simscore/pkg/simscore/store/storetest"
)

// The contract tests need a live server; set SIMSCORE_TEST_POSTGRES_DSN to
// a database the tests may truncate.
func TestPostgresContract(t *testing.T) {
	dsn := os.Getenv("SIMSCORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SIMSCORE_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		db, err := New(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), dsn)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := db.conn.ExecContext(ctx, `TRUNCATE reports, submissions RESTART IDENTITY CASCADE`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return db
	})
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", len(entries))
	}
	if entries[0].Name() != "000001_create_submissions.up.sql" {
		t.Errorf("first migration = %s", entries[0].Name())
	}
}

func TestSubmissionQueryUsesDollarPlaceholders(t *testing.T) {
	q, args, err := selectSubmissions().Where("seq < ?", 5).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if want := "SELECT id, assignment_id, student_id, seq, locator, format, tokens, created_at FROM submissions WHERE seq < $1"; q != want {
		t.Errorf("query = %q, want %q", q, want)
	}
	if len(args) != 1 {
		t.Errorf("args = %v", args)
	}
}
