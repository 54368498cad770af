package injection

import "testing"

func TestPushAndTryNext(t *testing.T) {
	c := New(2)
	if _, ok := c.TryNext(); ok {
		t.Fatal("expected empty channel")
	}
	if !c.Push("G28") {
		t.Fatal("expected push to succeed")
	}
	line, ok := c.TryNext()
	if !ok || line != "G28" {
		t.Fatalf("got %q %v", line, ok)
	}
}

func TestPushDropsWhenFull(t *testing.T) {
	c := New(1)
	if !c.Push("a") {
		t.Fatal("first push should succeed")
	}
	if c.Push("b") {
		t.Fatal("second push should be dropped, backlog full")
	}
	line, _ := c.TryNext()
	if line != "a" {
		t.Fatalf("got %q", line)
	}
}

func TestConcurrentProducers(t *testing.T) {
	c := New(16)
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(n int) {
			c.Push("G0")
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	count := 0
	for {
		if _, ok := c.TryNext(); !ok {
			break
		}
		count++
	}
	if count != 4 {
		t.Fatalf("got %d lines", count)
	}
}
