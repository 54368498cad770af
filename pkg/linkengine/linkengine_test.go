package linkengine

import (
	"io"
	"strings"
	"testing"
	"time"

	"marlinfeed/pkg/gcodeline"
	"marlinfeed/pkg/injection"
	"marlinfeed/pkg/logging"
	"marlinfeed/pkg/printerstate"
	"marlinfeed/pkg/sendwindow"
)

func newTestEngine() *Engine {
	e := &Engine{
		log:      logging.New("test"),
		printer:  printerstate.New(),
		injector: injection.New(8),
		pauseCh:  make(chan struct{}, 1),
		lines:    gcodeline.NewReader(),
		window:   sendwindow.New(128),
	}
	e.lastOk = time.Now()
	e.lastLifesign = time.Now()
	return e
}

func TestHandleReplyOkAcksOutstanding(t *testing.T) {
	e := newTestEngine()
	e.window.Append("G28")
	e.window.Next() // transmit it so it's outstanding

	outcome, _ := e.handleReply("ok")
	if outcome != replyContinue {
		t.Fatal("expected continue")
	}
	if e.window.NeedsAck() {
		t.Fatal("expected the frame to be acked")
	}
}

func TestHandleReplySpuriousOkIsNotFatal(t *testing.T) {
	e := newTestEngine()
	outcome, reason := e.handleReply("ok")
	if outcome != replyContinue {
		t.Fatalf("spurious ok should not be fatal, got reason %q", reason)
	}
}

func TestHandleReplyOkWithTemperatureUpdatesState(t *testing.T) {
	e := newTestEngine()
	e.handleReply("ok T:200.0 /210.0 B:60.0 /65.0")
	tool0, _, bed := e.printer.Temperatures()
	if tool0.Actual != 200.0 || bed.Actual != 60.0 {
		t.Fatalf("got tool0=%+v bed=%+v", tool0, bed)
	}
}

func TestHandleReplyResendSeeksAndSuppressesNextOk(t *testing.T) {
	e := newTestEngine()
	e.window.Append("G0")
	e.window.Append("G1")
	e.window.Append("G2")
	e.window.Next()
	e.window.Next()
	e.window.Next()

	outcome, _ := e.handleReply("Resend:1")
	if outcome != replyContinue {
		t.Fatal("expected continue")
	}
	if !e.ignoreOk {
		t.Fatal("expected ignoreOk to be set")
	}
	if e.resendCount != 1 {
		t.Fatalf("got resendCount=%d", e.resendCount)
	}

	frame := string(e.window.Next())
	if !strings.HasPrefix(frame, "N1") {
		t.Fatalf("expected replay from N1, got %q", frame)
	}

	// The paired ok must not consume an ack.
	before := e.window.Outstanding()
	e.handleReply("ok")
	if e.window.Outstanding() != before {
		t.Fatalf("ignored ok should not change outstanding bytes: before=%d after=%d", before, e.window.Outstanding())
	}
}

func TestHandleReplyIllegalResendFailsJob(t *testing.T) {
	e := newTestEngine()
	e.window.Append("G0")
	e.window.Next()

	outcome, reason := e.handleReply("Resend:999")
	if outcome != replyJobFailed {
		t.Fatalf("expected job failure, got %v", outcome)
	}
	if reason == "" {
		t.Fatal("expected a reason")
	}
}

func TestHandleReplyErrorStartsErrorWindow(t *testing.T) {
	e := newTestEngine()
	if !e.firstError.IsZero() {
		t.Fatal("precondition: no error window yet")
	}
	e.handleReply("Error:Line Number is not Last Line Number+1")
	if e.firstError.IsZero() {
		t.Fatal("expected error window to start")
	}
}

func TestAppendIfFitsRespectsWindowCapacity(t *testing.T) {
	e := newTestEngine()
	e.window = sendwindow.New(8) // tiny buffer
	if e.appendIfFits("G28") {
		t.Fatal("expected G28's frame to exceed an 8-byte buffer")
	}
}

func TestFillFromSourcesPrefersInjectionOverFile(t *testing.T) {
	e := newTestEngine()
	e.injector.Push("M117 hello")

	src := &Source{
		Reader: gcodeline.NewReader(),
		Feed: func(buf []byte) (int, error) {
			return 0, io.EOF // nothing in the file; let the fill step see end-of-source
		},
	}
	e.fillFromSources(src, make([]byte, 64))

	if !e.window.HasNext() {
		t.Fatal("expected the injected line to have been queued")
	}
	frame := string(e.window.Next())
	if !strings.Contains(frame, "M117 hello") {
		t.Fatalf("got %q", frame)
	}
}

func TestFillFromSourcesPausedSkipsFile(t *testing.T) {
	e := newTestEngine()
	e.paused = true

	calls := 0
	src := &Source{
		Reader: gcodeline.NewReader(),
		Feed: func(buf []byte) (int, error) {
			calls++
			return 0, nil
		},
	}
	e.fillFromSources(src, make([]byte, 64))
	if calls != 0 {
		t.Fatalf("expected the file source not to be read while paused, got %d calls", calls)
	}
}
