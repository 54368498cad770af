package history

import (
	"testing"
	"time"
)

func TestRecordOrderingMostRecentFirst(t *testing.T) {
	r := New(16)
	r.Record("a.gcode", true, "", time.Now(), time.Now())
	r.Record("b.gcode", false, "resend storm", time.Now(), time.Now())

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("got %d records", len(list))
	}
	if list[0].FileName != "b.gcode" {
		t.Fatalf("expected most recent first, got %q", list[0].FileName)
	}
	if list[1].FileName != "a.gcode" {
		t.Fatalf("got %q", list[1].FileName)
	}
}

func TestRecordEvictsOldestWhenFull(t *testing.T) {
	r := New(2)
	r.Record("a.gcode", true, "", time.Now(), time.Now())
	r.Record("b.gcode", true, "", time.Now(), time.Now())
	r.Record("c.gcode", true, "", time.Now(), time.Now())

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("expected capacity-bounded length 2, got %d", len(list))
	}
	if list[0].FileName != "c.gcode" || list[1].FileName != "b.gcode" {
		t.Fatalf("expected [c,b], got %+v", list)
	}
}

func TestRecordAssignsUniqueIDs(t *testing.T) {
	r := New(4)
	a := r.Record("a.gcode", true, "", time.Now(), time.Now())
	b := r.Record("b.gcode", true, "", time.Now(), time.Now())
	if a.ID == b.ID {
		t.Fatal("expected distinct job IDs")
	}
}
