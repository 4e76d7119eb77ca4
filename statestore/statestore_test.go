package statestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_PutGet_RoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, KeySessionToken, []byte("tok-abc")); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, KeySessionToken)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "tok-abc" {
		t.Errorf("got %q, want %q", got, "tok-abc")
	}
}

func TestStore_Get_Missing(t *testing.T) {
	s, _ := openTestStore(t)

	_, err := s.Get(context.Background(), "absent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestStore_Put_Overwrites(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, KeySessionUser, []byte("old"))
	if err := s.Put(ctx, KeySessionUser, []byte("new")); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, KeySessionUser)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("got %q, want %q", got, "new")
	}
}

func TestStore_Put_EmptyKeyRejected(t *testing.T) {
	s, _ := openTestStore(t)

	if err := s.Put(context.Background(), "", []byte("x")); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestStore_Delete(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, KeyCartSnapshot, []byte("{}"))
	if err := s.Delete(ctx, KeyCartSnapshot); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, KeyCartSnapshot); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound after delete", err)
	}

	// Deleting an absent key is not an error.
	if err := s.Delete(ctx, KeyCartSnapshot); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestStore_Clear(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, KeySessionToken, []byte("a"))
	_ = s.Put(ctx, KeySessionUser, []byte("b"))

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{KeySessionToken, KeySessionUser} {
		if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("key %q survived Clear", key)
		}
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, KeySessionToken, []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, KeySessionToken)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "persisted" {
		t.Errorf("got %q after reopen, want %q", got, "persisted")
	}
}

func TestOpen_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "state.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open with missing parents: %v", err)
	}
	_ = s.Close()
}
