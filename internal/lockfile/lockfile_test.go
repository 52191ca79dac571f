package lockfile

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "test.lock")

	h, err := Acquire(path, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	h.Release()
	h.Release() // second release is a no-op

	h2, err := Acquire(path, time.Second)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	h2.Release()
}

func TestAcquireTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	h, err := Acquire(path, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.Release()

	start := time.Now()
	_, err = Acquire(path, 300*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout acquiring held lock")
	}
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %T: %v", err, err)
	}
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
		t.Fatalf("timed out too early: %v", elapsed)
	}
}

func TestReleaseNil(t *testing.T) {
	var h *Handle
	h.Release() // must not panic
}
