package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, dbPath string, calls *atomic.Int32, opts ...Option) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.Cleanup(func() {
		cancel()
		<-done
	})
	go func() {
		defer close(done)
		if err := Watch(ctx, dbPath, 100*time.Millisecond, logger, func() { calls.Add(1) }, opts...); err != nil {
			t.Errorf("watch: %v", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)
}

func TestWatchDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "careerlink.db")
	if err := os.WriteFile(dbPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	startWatch(t, dbPath, &calls)

	for i := range 5 {
		_ = os.WriteFile(dbPath, []byte{byte(i)}, 0o644)
		_ = os.WriteFile(dbPath+"-wal", []byte{byte(i)}, 0o644)
		time.Sleep(10 * time.Millisecond)
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return calls.Load() >= 1
	}, "database change not reported")

	time.Sleep(300 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "careerlink.db")

	var calls atomic.Int32
	startWatch(t, dbPath, &calls)

	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "careerlink.db.bak"), []byte("x"), 0o644)

	time.Sleep(400 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("calls = %d, want 0", got)
	}
}

func TestWatchSkipsLocalWrites(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "careerlink.db")
	if err := os.WriteFile(dbPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	var local atomic.Int64
	var calls atomic.Int32
	startWatch(t, dbPath, &calls, WithLocalWrites(func() time.Time {
		return time.Unix(0, local.Load())
	}))

	local.Store(time.Now().UnixNano())
	_ = os.WriteFile(dbPath+"-wal", []byte("local"), 0o644)

	time.Sleep(400 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("calls after local write = %d, want 0", got)
	}

	_ = os.WriteFile(dbPath+"-wal", []byte("external"), 0o644)
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return calls.Load() == 1
	}, "external write not reported")
}

func TestIsDBFile(t *testing.T) {
	db := "/data/careerlink.db"
	cases := map[string]bool{
		"/data/careerlink.db":         true,
		"/data/careerlink.db-wal":     true,
		"/data/careerlink.db-journal": true,
		"/data/careerlink.db-shm":     false,
		"/data/other.db":              false,
	}
	for name, want := range cases {
		if got := isDBFile(db, name); got != want {
			t.Errorf("isDBFile(%q) = %v, want %v", name, got, want)
		}
	}
}
