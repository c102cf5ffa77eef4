package audit

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewSQLiteRepository(db)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	return repo
}

func TestCreateAndList(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	entry := &Entry{
		Action:   "app.launch",
		Endpoint: "/api/v1/app/launch",
		ClientID: "10.0.0.5",
		Details:  map[string]any{"package": "com.example.app"},
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !strings.HasPrefix(entry.ID, "aud-") {
		t.Errorf("generated id = %q, want aud- prefix", entry.ID)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("List() = %+v, want one entry", result)
	}

	got := result.Entries[0]
	if got.Action != "app.launch" || got.Endpoint != "/api/v1/app/launch" || got.ClientID != "10.0.0.5" {
		t.Errorf("entry = %+v", got)
	}
	if got.Details["package"] != "com.example.app" {
		t.Errorf("details = %v", got.Details)
	}
}

func TestListFilterByAction(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	for _, action := range []string{"app.launch", "app.stop", "app.launch"} {
		if err := repo.Create(ctx, &Entry{Action: action, Endpoint: "/x"}); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{Action: "app.launch"})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("Total = %d, want 2", result.Total)
	}
	for _, e := range result.Entries {
		if e.Action != "app.launch" {
			t.Errorf("entry action = %q, want app.launch", e.Action)
		}
	}
}

func TestListPagination(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := &Entry{
			Action:    "app.launch",
			Endpoint:  "/x",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if result.Total != 5 || len(result.Entries) != 2 {
		t.Fatalf("page = %d entries of %d total, want 2 of 5", len(result.Entries), result.Total)
	}
	// Most recent first.
	if !result.Entries[0].CreatedAt.After(result.Entries[1].CreatedAt) {
		t.Error("entries not ordered most recent first")
	}

	second, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List() offset error: %v", err)
	}
	if len(second.Entries) != 2 {
		t.Fatalf("second page = %d entries, want 2", len(second.Entries))
	}
	if second.Entries[0].ID == result.Entries[0].ID {
		t.Error("offset page repeats first page")
	}
}

func TestListClampsLimit(t *testing.T) {
	repo := testRepo(t)

	result, err := repo.List(context.Background(), Filter{Limit: 9999})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if result.Limit != 200 {
		t.Errorf("Limit = %d, want clamped to 200", result.Limit)
	}

	result, err = repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if result.Limit != 50 {
		t.Errorf("default Limit = %d, want 50", result.Limit)
	}
	if result.Entries == nil {
		t.Error("Entries is nil, want empty slice")
	}
}

func TestCreateWithoutDetails(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Entry{Action: "container.restart", Endpoint: "/container/restart"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if got := result.Entries[0]; got.Details != nil || got.ClientID != "" {
		t.Errorf("entry = %+v, want empty details and client id", got)
	}
}
