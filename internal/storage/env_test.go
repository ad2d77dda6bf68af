package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	env, err := Open(DefaultConfig(t.TempDir(), 1<<30))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { env.Close() })
	return env
}

func TestOpen_RequiredConfig(t *testing.T) {
	if _, err := Open(Config{MapSize: 1 << 20}); err == nil {
		t.Error("expected error for missing dir")
	}
	if _, err := Open(Config{Dir: t.TempDir()}); err == nil {
		t.Error("expected error for missing map size")
	}
}

func TestTxn_SetGet(t *testing.T) {
	env := newTestEnv(t)

	w, err := env.WriteTxn()
	if err != nil {
		t.Fatalf("WriteTxn failed: %v", err)
	}
	if err := w.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// The writer sees its own pending writes.
	got, err := w.Get([]byte("k"))
	if err != nil || string(got) != "v" {
		t.Fatalf("Get in writer = %q, %v", got, err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	r, err := env.ReadTxn()
	if err != nil {
		t.Fatalf("ReadTxn failed: %v", err)
	}
	defer r.Abort()

	got, err = r.Get([]byte("k"))
	if err != nil || string(got) != "v" {
		t.Fatalf("Get after commit = %q, %v", got, err)
	}
	if _, err := r.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get(missing) = %v, want ErrKeyNotFound", err)
	}
}

func TestTxn_AbortDiscardsWrites(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.WriteTxn()
	if err := w.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	w.Abort()

	r, _ := env.ReadTxn()
	defer r.Abort()
	if _, err := r.Get([]byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after abort = %v, want ErrKeyNotFound", err)
	}
}

func TestTxn_ReadOnly(t *testing.T) {
	env := newTestEnv(t)

	r, _ := env.ReadTxn()
	defer r.Abort()

	if err := r.Set([]byte("k"), []byte("v")); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Set on reader = %v, want ErrReadOnly", err)
	}
	if err := r.Delete([]byte("k")); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Delete on reader = %v, want ErrReadOnly", err)
	}
}

func TestTxn_CapacityExceeded(t *testing.T) {
	env, err := Open(DefaultConfig(t.TempDir(), 1<<20))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { env.Close() })

	w, _ := env.WriteTxn()
	defer w.Abort()

	if err := w.Set([]byte("big"), make([]byte, 2<<20)); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("oversized Set = %v, want ErrCapacityExceeded", err)
	}
}

func TestTxn_Scan(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.WriteTxn()
	for i := 0; i < 3; i++ {
		if err := w.Set([]byte(fmt.Sprintf("a/%d", i)), []byte{byte(i)}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := w.Set([]byte("b/0"), []byte("other")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	r, _ := env.ReadTxn()
	defer r.Abort()

	var keys []string
	err := r.Scan([]byte("a/"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a/0" || keys[2] != "a/2" {
		t.Errorf("Scan keys = %v", keys)
	}

	// A callback error aborts and propagates unchanged.
	sentinel := errors.New("stop")
	err = r.Scan([]byte("a/"), func(key, value []byte) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Errorf("Scan err = %v, want sentinel", err)
	}
}

func TestEnv_WriterBlocksReader(t *testing.T) {
	env := newTestEnv(t)

	w, err := env.WriteTxn()
	if err != nil {
		t.Fatalf("WriteTxn failed: %v", err)
	}
	if err := w.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		r, err := env.ReadTxn()
		if err == nil {
			r.Abort()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired while write was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("reader never acquired after commit")
	}
}

func TestEnv_Close(t *testing.T) {
	env, err := Open(DefaultConfig(t.TempDir(), 1<<30))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := env.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := env.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
	if _, err := env.ReadTxn(); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadTxn after Close = %v, want ErrClosed", err)
	}
	if _, err := env.WriteTxn(); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteTxn after Close = %v, want ErrClosed", err)
	}
}

func TestEnv_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()

	env, err := Open(DefaultConfig(dir, 1<<30))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	w, _ := env.WriteTxn()
	if err := w.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := env.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	env, err = Open(DefaultConfig(dir, 1<<30))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	t.Cleanup(func() { env.Close() })

	r, _ := env.ReadTxn()
	defer r.Abort()
	got, err := r.Get([]byte("k"))
	if err != nil || string(got) != "v" {
		t.Errorf("Get after reopen = %q, %v", got, err)
	}
}
