package dirwatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRefillWaitsForRipeness(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.gcode")
	if err := os.WriteFile(path, []byte("G28\n"), 0644); err != nil {
		t.Fatal(err)
	}

	base := time.Now()
	w := New()
	tick := base
	w.now = func() time.Time { return tick }
	w.AddDir(dir, false)

	if got := w.Refill(); len(got) != 0 {
		t.Fatalf("expected no ripe files yet, got %v", got)
	}

	tick = base.Add(MinAge + time.Second)
	got := w.Refill()
	if len(got) != 1 || got[0] != path {
		t.Fatalf("got %v", got)
	}

	// Already delivered; a further refill should not repeat it.
	if got2 := w.Refill(); len(got2) != 0 {
		t.Fatalf("expected no repeat delivery, got %v", got2)
	}
}

func TestOnceDirDroppedAfterOneScan(t *testing.T) {
	dir := t.TempDir()
	base := time.Now()
	w := New()
	tick := base
	w.now = func() time.Time { return tick }
	w.AddDir(dir, true)

	w.Refill()
	if len(w.dirs) != 0 {
		t.Fatalf("expected the once-only dir to be dropped after one scan")
	}
}

func TestEmptyReflectsNoFurtherWork(t *testing.T) {
	w := New()
	if !w.Empty() {
		t.Fatal("fresh watcher should be empty")
	}
	w.AddDir("/nonexistent", false)
	if w.Empty() {
		t.Fatal("watcher with a watched dir should not be empty")
	}
}

func TestModifiedWhileCandidateResetsRipenessClock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "b.gcode")
	os.WriteFile(path, []byte("G1\n"), 0644)

	base := time.Now()
	w := New()
	tick := base
	w.now = func() time.Time { return tick }
	w.AddDir(dir, false)
	w.Refill()

	// File touched again just before it would have gone ripe.
	tick = base.Add(MinAge - 100*time.Millisecond)
	future := tick.Add(time.Hour)
	os.Chtimes(path, future, future)
	if got := w.Refill(); len(got) != 0 {
		t.Fatalf("freshly modified file should not be ripe yet, got %v", got)
	}
}
