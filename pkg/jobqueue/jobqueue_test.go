package jobqueue

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSeededSourcesDrainFIFOOrder(t *testing.T) {
	q := New([]string{"a.gcode", "b.gcode", "-"}, nil, PolicyQuit)
	got := []string{}
	for {
		s, ok := q.Next()
		if !ok {
			break
		}
		got = append(got, s)
	}
	if len(got) != 3 || got[0] != "a.gcode" || got[1] != "b.gcode" || got[2] != "-" {
		t.Fatalf("got %v", got)
	}
}

func TestDirectorySeedIsWatchedNotQueued(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.gcode")
	os.WriteFile(path, []byte("G28\n"), 0644)
	os.Chtimes(path, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour))

	q := New([]string{dir}, func(p string) bool { return p == dir }, PolicyNext)
	src, ok := q.Next()
	if !ok || src != path {
		t.Fatalf("expected the watched .gcode file, got %q %v", src, ok)
	}
}

func TestNonGCodeExtensionIgnoredFromWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readme.txt")
	os.WriteFile(path, []byte("hi"), 0644)
	os.Chtimes(path, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour))

	q := New([]string{dir}, func(p string) bool { return p == dir }, PolicyNext)
	if _, ok := q.Next(); ok {
		t.Fatal("non-.gcode file should not surface from the watcher")
	}
}

func TestDefaultPolicy(t *testing.T) {
	if DefaultPolicy(true) != PolicyNext {
		t.Fatal("expected PolicyNext when HTTP is enabled")
	}
	if DefaultPolicy(false) != PolicyQuit {
		t.Fatal("expected PolicyQuit when HTTP is disabled")
	}
}

func TestEmptyReflectsSeededAndWatched(t *testing.T) {
	q := New(nil, nil, PolicyQuit)
	if !q.Empty() {
		t.Fatal("fresh queue should be empty")
	}
	q.seeded.Put("x.gcode")
	if q.Empty() {
		t.Fatal("queue with a seeded source should not be empty")
	}
}
