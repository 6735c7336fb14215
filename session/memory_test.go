package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testSession(id, userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:               id,
		UserID:           userID,
		AccessToken:      "at-" + id,
		RefreshToken:     "rt-" + id,
		ExpiresAt:        now.Add(30 * time.Minute),
		RefreshExpiresAt: now.Add(30 * 24 * time.Hour),
		CreatedAt:        now,
		UpdatedAt:        now,
		LastAccessAt:     now,
	}
}

func TestMemoryStoreSaveAndLookups(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	sess := testSession("s1", "u1")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	byID, err := store.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID.UserID != "u1" {
		t.Fatalf("unexpected session %+v", byID)
	}

	byAccess, err := store.GetByAccessToken(ctx, "at-s1")
	if err != nil {
		t.Fatalf("GetByAccessToken failed: %v", err)
	}
	if byAccess.ID != "s1" {
		t.Fatalf("unexpected session %+v", byAccess)
	}

	if _, err := store.GetByAccessToken(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Mutating the returned copy must not affect stored state.
	byID.UserID = "mutated"
	again, err := store.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.UserID != "u1" {
		t.Fatal("store handed out aliased state")
	}
}

func TestMemoryStoreRejectsInvalidRecords(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	bad := testSession("s1", "u1")
	bad.RefreshToken = bad.AccessToken
	if err := store.Save(ctx, bad); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for identical tokens, got %v", err)
	}

	if err := store.Save(ctx, &Session{ID: "x"}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for missing tokens, got %v", err)
	}
}

func TestMemoryStoreConsumeRefreshTokenSingleUse(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	if err := store.Save(ctx, testSession("s1", "u1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	sess, err := store.ConsumeRefreshToken(ctx, "rt-s1")
	if err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if sess.ID != "s1" {
		t.Fatalf("unexpected session %+v", sess)
	}

	if _, err := store.ConsumeRefreshToken(ctx, "rt-s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second consume must fail with ErrNotFound, got %v", err)
	}
	if _, err := store.GetByID(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("consumed session must be gone, got %v", err)
	}
	if _, err := store.GetByAccessToken(ctx, "at-s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("consumed session access index must be gone, got %v", err)
	}
}

func TestMemoryStoreConsumeRefreshTokenRace(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	if err := store.Save(ctx, testSession("s1", "u1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	const racers = 16
	var won atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := store.ConsumeRefreshToken(ctx, "rt-s1"); err == nil {
				won.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := won.Load(); got != 1 {
		t.Fatalf("exactly one racer must win, got %d", got)
	}
}

func TestMemoryStoreUserScopedOperations(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		if err := store.Save(ctx, testSession(id, "u1")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if err := store.Save(ctx, testSession("s3", "u2")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	list, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions for u1, got %d", len(list))
	}

	count, err := store.DeleteByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteByUser failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 deletions, got %d", count)
	}

	list, err = store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no sessions for u1, got %d", len(list))
	}

	// Other users are untouched.
	list, err = store.ListByUser(ctx, "u2")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 session for u2, got %d", len(list))
	}
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	if err := store.Delete(ctx, "missing"); err != nil {
		t.Fatalf("deleting an absent session must not fail: %v", err)
	}

	if err := store.Save(ctx, testSession("s1", "u1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("repeat Delete must not fail: %v", err)
	}
}

func TestMemoryStoreTouch(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	if err := store.Save(ctx, testSession("s1", "u1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if err := store.Touch(ctx, "s1", at); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	sess, err := store.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !sess.LastAccessAt.Equal(at) {
		t.Fatalf("expected last access %v, got %v", at, sess.LastAccessAt)
	}

	if err := store.Touch(ctx, "missing", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreJanitor(t *testing.T) {
	store := NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	dead := testSession("s1", "u1")
	dead.RefreshExpiresAt = time.Now().Add(-time.Minute)
	if err := store.Save(ctx, dead); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, testSession("s2", "u1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	store.removeDead(time.Now())

	if _, err := store.GetByID(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected dead session removed, got %v", err)
	}
	if _, err := store.GetByID(ctx, "s2"); err != nil {
		t.Fatalf("live session must survive cleanup: %v", err)
	}
}
