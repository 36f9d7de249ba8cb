package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/mockinterview/pkg/memory"
	"github.com/MrWong99/mockinterview/pkg/memory/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if MOCKINTERVIEW_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MOCKINTERVIEW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MOCKINTERVIEW_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] on a clean schema. Tests that
// use it must not run in parallel with each other.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS message_hashes CASCADE",
		"DROP TABLE IF EXISTS interviews CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema: %v", err)
		}
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func userMsg(id, text string) memory.Message {
	return memory.Message{
		TranscriptID:   id,
		Participant:    memory.ParticipantUser,
		Transcript:     text,
		TimestampStart: 1_700_000_000_000,
		TimestampEnd:   1_700_000_001_500,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	newTestStore(t)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, testDSN(t))
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()
	for range 2 {
		if err := postgres.Migrate(ctx, pool); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
	}
}

func TestStore_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	iv, err := store.Create(ctx, "", json.RawMessage(`{"language":"English"}`))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if iv.Status != memory.StatusInProgress || len(iv.Messages) != 0 {
		t.Errorf("Create = %+v", iv)
	}

	got, err := store.Get(ctx, iv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var cfg map[string]string
	if err := json.Unmarshal(got.Config, &cfg); err != nil || cfg["language"] != "English" {
		t.Errorf("Config = %s (%v)", got.Config, err)
	}

	updated, err := store.Update(ctx, iv.ID, memory.Update{
		Status:   memory.StatusCompleted,
		Config:   json.RawMessage(`null`),
		Messages: []memory.Message{userMsg("t1", "hello")},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != memory.StatusCompleted || updated.Config != nil || len(updated.Messages) != 1 {
		t.Errorf("Update = %+v", updated)
	}

	list, err := store.List(ctx, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %d, %v", len(list), err)
	}

	if err := store.Delete(ctx, iv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, iv.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	if err := store.Delete(ctx, iv.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Delete twice err = %v", err)
	}
	if _, err := store.Update(ctx, iv.ID, memory.Update{}); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Update missing err = %v", err)
	}
}

func TestStore_DeleteAllByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _ = store.Create(ctx, memory.StatusCompleted, nil)
	_, _ = store.Create(ctx, memory.StatusPaused, nil)

	n, err := store.DeleteAll(ctx, memory.StatusPaused)
	if err != nil || n != 1 {
		t.Fatalf("DeleteAll(paused) = %d, %v", n, err)
	}
	n, _ = store.DeleteAll(ctx, "")
	if n != 1 {
		t.Errorf("DeleteAll = %d, want 1", n)
	}
}

func TestStore_AppendMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	iv, _ := store.Create(ctx, "", nil)

	res, err := store.AppendMessage(ctx, iv.ID, userMsg("t1", "I led the migration."))
	if err != nil || res.Duplicate || res.MessageCount != 1 {
		t.Fatalf("first append = %+v, %v", res, err)
	}

	res, _ = store.AppendMessage(ctx, iv.ID, userMsg("t1", "I led the database migration."))
	if res.Duplicate || res.MessageCount != 1 {
		t.Errorf("replace = %+v", res)
	}

	res, _ = store.AppendMessage(ctx, iv.ID, userMsg("t2", "i led the MIGRATION"))
	if !res.Duplicate || res.MessageCount != 1 {
		t.Errorf("duplicate = %+v", res)
	}

	got, _ := store.Get(ctx, iv.ID)
	if got.Messages[0].Transcript != "I led the database migration." {
		t.Errorf("transcript = %q", got.Messages[0].Transcript)
	}

	if _, err := store.AppendMessage(ctx, "missing", userMsg("t9", "x")); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("missing interview err = %v", err)
	}
}

func TestStore_AppendMessage_Concurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	iv, _ := store.Create(ctx, "", nil)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		dups int
	)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.AppendMessage(ctx, iv.ID, userMsg(string(rune('a'+i)), "same words"))
			if err != nil {
				t.Errorf("AppendMessage: %v", err)
				return
			}
			if res.Duplicate {
				mu.Lock()
				dups++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if dups != 7 {
		t.Errorf("duplicates = %d, want 7", dups)
	}
	got, _ := store.Get(ctx, iv.ID)
	if len(got.Messages) != 1 {
		t.Errorf("stored %d messages, want 1", len(got.Messages))
	}
}
