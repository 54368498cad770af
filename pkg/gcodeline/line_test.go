package gcodeline

import "testing"

func TestStartsWithWordBoundary(t *testing.T) {
	cases := []struct {
		input   string
		pattern string
		want    int
	}{
		{"GET /api/version HTTP/1.1", "GET\b", len("GET ")},
		{"GETX /api/version", "GET\b", 0},
		{"ok", "ok", 2},
		{"ok T:200", "ok\b", 3},
		{"okay", "ok\b", 0},
		{"", "ok\b", 0},
	}
	for _, c := range cases {
		l := NewLine([]byte(c.input))
		got := l.StartsWith(c.pattern)
		if got != c.want {
			t.Errorf("StartsWith(%q, %q) = %d, want %d", c.input, c.pattern, got, c.want)
		}
	}
}

func TestSlice(t *testing.T) {
	l := NewLine([]byte("/api/files/local/foo.gcode"))
	l.Slice(len("/api/"))
	if l.String() != "files/local/foo.gcode" {
		t.Fatalf("got %q", l.String())
	}

	l2 := NewLine([]byte("hello world"))
	l2.Slice(-5)
	if l2.String() != "world" {
		t.Fatalf("negative index: got %q", l2.String())
	}

	l3 := NewLine([]byte("hello"))
	l3.Slice(3, 1)
	if l3.Length() != 0 {
		t.Fatalf("end<=start should be empty, got %q", l3.String())
	}

	l4 := NewLine([]byte("hello"))
	l4.Slice(0, 100)
	if l4.String() != "hello" {
		t.Fatalf("clamp to length: got %q", l4.String())
	}
}

func TestGetDoubleAndString(t *testing.T) {
	l := NewLine([]byte("G1 X12.5 Y-3 F1500"))
	if v, ok := l.GetDouble("X"); !ok || v != 12.5 {
		t.Fatalf("X: got %v %v", v, ok)
	}
	if v, ok := l.GetDouble("Y"); !ok || v != -3 {
		t.Fatalf("Y: got %v %v", v, ok)
	}
	if _, ok := l.GetDouble("Z"); ok {
		t.Fatalf("Z should not be found")
	}

	lj := NewLine([]byte(`{"command": "pause"}`))
	if s, ok := lj.GetString(`"command"`); !ok || s != "pause" {
		t.Fatalf("command: got %q %v", s, ok)
	}
}

func TestNumber(t *testing.T) {
	l := NewLine([]byte("123 hello"))
	n, ok := l.Number()
	if !ok || n != 123 {
		t.Fatalf("got %v %v", n, ok)
	}
	if _, ok := NewLine([]byte("hello")).Number(); ok {
		t.Fatalf("should not parse a number")
	}
}
