package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/taskhive/authstack/internal"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, "rs", time.Hour), mr
}

func device(name string) [32]byte {
	return sha256.Sum256([]byte(name))
}

func TestCreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess, token, err := store.Create(ctx, 42, "pid-42", device("phone"), internal.NewSessionToken)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	got, err := store.Get(ctx, token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != 42 || got.PublicID != "pid-42" {
		t.Errorf("roundtrip = %+v", got)
	}
	if got.DeviceHash != sess.DeviceHash {
		t.Error("device hash mismatch")
	}
}

func TestGetUnknownToken(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown token = %v, want ErrNotFound", err)
	}
}

func TestCreateReplacesSameDevice(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, first, err := store.Create(ctx, 42, "pid-42", device("phone"), internal.NewSessionToken)
	if err != nil {
		t.Fatal(err)
	}
	_, second, err := store.Create(ctx, 42, "pid-42", device("phone"), internal.NewSessionToken)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(ctx, first); !errors.Is(err, ErrNotFound) {
		t.Errorf("first session survived: %v", err)
	}
	if _, err := store.Get(ctx, second); err != nil {
		t.Errorf("second session: %v", err)
	}

	n, err := store.ActiveCount(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("active = %d, want 1", n)
	}
}

func TestDistinctDevicesCoexist(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"phone", "laptop", "tablet"} {
		if _, _, err := store.Create(ctx, 42, "pid-42", device(name), internal.NewSessionToken); err != nil {
			t.Fatal(err)
		}
	}
	n, err := store.ActiveCount(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("active = %d, want 3", n)
	}
}

func TestRotate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, token, err := store.Create(ctx, 42, "pid-42", device("phone"), internal.NewSessionToken)
	if err != nil {
		t.Fatal(err)
	}

	sess, next, err := store.Rotate(ctx, token, device("phone"), internal.NewSessionToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if next == token {
		t.Error("rotation reissued the same token")
	}
	if sess.UserID != 42 || sess.PublicID != "pid-42" {
		t.Errorf("rotated session = %+v", sess)
	}
	if _, err := store.Get(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Errorf("old token alive after rotation: %v", err)
	}
}

func TestRotateDeviceMismatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, token, err := store.Create(ctx, 42, "pid-42", device("phone"), internal.NewSessionToken)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := store.Rotate(ctx, token, device("laptop"), internal.NewSessionToken); !errors.Is(err, ErrDeviceMismatch) {
		t.Fatalf("foreign device = %v, want ErrDeviceMismatch", err)
	}
	// The presented session was revoked on the spot.
	if _, err := store.Get(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Errorf("session alive after mismatch: %v", err)
	}
}

func TestDeleteAllForUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"phone", "laptop"} {
		if _, _, err := store.Create(ctx, 42, "pid-42", device(name), internal.NewSessionToken); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := store.Create(ctx, 99, "pid-99", device("phone"), internal.NewSessionToken); err != nil {
		t.Fatal(err)
	}

	n, err := store.DeleteAllForUser(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	// The other user is untouched.
	m, err := store.ActiveCount(ctx, 99)
	if err != nil {
		t.Fatal(err)
	}
	if m != 1 {
		t.Errorf("other user active = %d, want 1", m)
	}
}

func TestExpiredSessionIsGone(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, token, err := store.Create(ctx, 42, "pid-42", device("phone"), internal.NewSessionToken)
	if err != nil {
		t.Fatal(err)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.Get(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session = %v, want ErrNotFound", err)
	}
	n, err := store.ActiveCount(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("active after expiry = %d", n)
	}
}

func TestCorruptRecordReadsAsMissing(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	mr.Set("rs:garbage", "not a session record")
	if _, err := store.Get(ctx, "garbage"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("corrupt record = %v, want ErrNotFound", err)
	}
}
