package journal_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/intake/internal/classifier"
	"github.com/JaimeStill/intake/internal/ingest"
	"github.com/JaimeStill/intake/internal/journal"
	"github.com/JaimeStill/intake/pkg/repository"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("INTAKE_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("INTAKE_TEST_DB_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ddl, err := os.ReadFile(filepath.Join("..", "..", "cmd", "migrate", "migrations", "000001_upload_sessions.up.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := db.Exec(string(ddl)); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	return db
}

func TestRecordAndList(t *testing.T) {
	db := openDB(t)
	j := journal.New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	owner := "owner-" + uuid.NewString()
	start := time.Now().UTC().Truncate(time.Millisecond)

	snap := ingest.Snapshot{
		SessionID:     uuid.New(),
		FileKey:       "/data/carpeta.pdf",
		Filename:      "carpeta.pdf",
		OwnerEntityID: owner,
		DeclaredType:  classifier.TypeTaxFolder,
		Status:        ingest.StatusRequestingSlot,
		UpdatedAt:     start,
	}
	if err := j.Record(ctx, snap); err != nil {
		t.Fatalf("record: %v", err)
	}

	snap.DocumentID = "doc-" + uuid.NewString()
	snap.Status = ingest.StatusExtractFailed
	snap.Attempts = 4
	snap.StartedAt = start
	snap.DeadlineAt = start.Add(3 * time.Minute)
	snap.Error = &ingest.Error{Code: "E_PARSE", Message: "unreadable"}
	snap.SoftErrors = []ingest.Error{{Code: ingest.CodeConfirmFailed, Message: "no ack"}}
	snap.UpdatedAt = start.Add(time.Second)
	if err := j.Record(ctx, snap); err != nil {
		t.Fatalf("record update: %v", err)
	}

	list, err := j.List(ctx, owner, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list = %d rows, want 1 upserted row", len(list))
	}

	got := list[0]
	if got.Status != ingest.StatusExtractFailed || got.DocumentID != snap.DocumentID || got.Attempts != 4 {
		t.Errorf("row = %+v", got)
	}
	if got.Error == nil || got.Error.Code != "E_PARSE" {
		t.Errorf("error column = %+v", got.Error)
	}
	if len(got.SoftErrors) != 1 || got.SoftErrors[0].Code != ingest.CodeConfirmFailed {
		t.Errorf("soft errors = %+v", got.SoftErrors)
	}

	latest, err := j.Latest(ctx, snap.DocumentID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.SessionID != snap.SessionID {
		t.Errorf("latest session = %s, want %s", latest.SessionID, snap.SessionID)
	}
}

func TestLatestNotFound(t *testing.T) {
	db := openDB(t)
	j := journal.New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := j.Latest(context.Background(), "missing-"+uuid.NewString()); !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecordRejectsUnknownStatus(t *testing.T) {
	db := openDB(t)
	j := journal.New(db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := j.Record(context.Background(), ingest.Snapshot{
		SessionID:     uuid.New(),
		OwnerEntityID: "owner-" + uuid.NewString(),
		Status:        "archived",
		UpdatedAt:     time.Now(),
	})
	if !errors.Is(err, repository.ErrInvalidValue) {
		t.Errorf("err = %v, want ErrInvalidValue", err)
	}
}
