// Package linkengine implements the Protocol Engine (spec component C):
// the dialogue state machine that drives the printer link — resync,
// send, classify replies, ack, resend, error/timeout escalation.
//
// Grounded on original_source/src/marlinfeed.cpp's handle() function and
// the surrounding module-level constants (MAX_TIME_WITH_ERROR,
// MAX_TIME_SILENCE, STALL_TIME, resend_count), translated from a single
// blocking C main loop into a Go goroutine that owns the send window,
// printer state, and transport exclusively, communicating with HTTP
// workers only through pkg/injection and a pause-toggle channel — the Go
// rendering of spec.md §5's channel-only discipline.
package linkengine

import (
	"os"
	"time"

	"marlinfeed/pkg/ferrors"
	"marlinfeed/pkg/gcodeline"
	"marlinfeed/pkg/injection"
	"marlinfeed/pkg/logging"
	"marlinfeed/pkg/printerstate"
	"marlinfeed/pkg/sendwindow"
	"marlinfeed/pkg/transport"
)

// Timing constants, ported verbatim from marlinfeed.cpp's module-level
// constants (values there are in milliseconds).
const (
	StallTime          = 2 * time.Second
	MaxTimeWithError   = 5 * time.Second
	MaxTimeSilence     = 120 * time.Second
	ResendStormLimit   = 3 // resend_count > 3 is fatal
	HandshakeAttempts  = 4
	HandshakeBannerWait = 3 * time.Second
	HandshakeFirstSleep = 1500 * time.Millisecond
	HandshakeRetrySleep = 100 * time.Millisecond
	ResendSettleSleep   = 100 * time.Millisecond
)

// Phase mirrors printerstate.Phase; the engine drives it, printerstate.State
// mirrors it for observers.
type Phase = printerstate.Phase

// Config bundles the engine's tunables.
type Config struct {
	Baud        int  // TTY baud rate, 0 = default 115200
	BufSize     int  // printer receive-buffer size, 0 = default 128
	Verbosity   int
}

// Source is the current job's line supply: the Line Reader over the job
// file, plus metadata the engine needs (name, size for progress).
type Source struct {
	Reader   *gcodeline.Reader
	Name     string
	SizeHint int64
	// Feed is called by the engine's fill step to pull more raw bytes
	// from the underlying file/stdin when the reader has no ready line.
	// At end of file it returns a ferrors.KindEOFSource error, possibly
	// together with the last bytes read (see FeedFromReadCloser).
	Feed func(buf []byte) (int, error)
	eof  bool

	// pending holds a line already pulled from Reader but not yet small
	// enough to fit the window; kept here (rather than re-derived) so a
	// momentarily-full window never loses it, mirroring marlinfeed.cpp's
	// next_gcode pointer which persists across loop iterations until
	// successfully appended.
	pending    string
	hasPending bool
}

// JobResult reports how a job ended.
type JobResult struct {
	Success bool
	Reason  string // failure message, empty on success
	Err     error
}

// Engine is the Protocol Engine. One Engine instance owns exactly one
// transport connection, send window, and printer-state object; it must be
// driven from a single goroutine.
type Engine struct {
	cfg    Config
	log    *logging.Logger
	target string

	conn   transport.Conn
	reader *transport.AsyncReader
	window *sendwindow.Window
	lines  *gcodeline.Reader // decodes printer replies

	printer  *printerstate.State
	injector *injection.Channel
	pauseCh  chan struct{}
	paused   bool

	lastOk       time.Time
	lastLifesign time.Time
	firstError   time.Time
	resendCount  int
	ignoreOk     bool

	// OnJobEnd, if set, is invoked by Serve after each job with the job's
	// name and outcome — the side channel component M (job history) and
	// component J (metrics) hang off of, keeping both out of the engine's
	// own concerns.
	OnJobEnd func(name string, result JobResult, started, ended time.Time)
}

// New creates an Engine bound to printer state and an injection channel.
// It does not open the transport; call Resync for that.
func New(target string, cfg Config, printer *printerstate.State, injector *injection.Channel, log *logging.Logger) *Engine {
	log.SetVerbosity(cfg.Verbosity)
	return &Engine{
		cfg:      cfg,
		log:      log,
		target:   target,
		printer:  printer,
		injector: injector,
		pauseCh:  make(chan struct{}, 1),
		lines:    gcodeline.NewReader(),
	}
}

// TogglePause is the control-signal channel from spec.md §5: HTTP
// workers (or SIGUSR1) call this to flip the pause flag; it never blocks
// the caller.
func (e *Engine) TogglePause() {
	select {
	case e.pauseCh <- struct{}{}:
	default:
	}
}

// Close releases the transport connection.
func (e *Engine) Close() error {
	if e.conn == nil {
		return nil
	}
	if e.reader != nil {
		e.reader.Stop()
	}
	return e.conn.Close()
}

func openTarget(target string, baud int) (transport.Conn, error) {
	return transport.Open(target, baud, isUnixSocketPath)
}

// isUnixSocketPath reports whether path exists as a socket special file,
// the CLI convention by which Marlinfeed tells socket targets from TTYs.
func isUnixSocketPath(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&os.ModeSocket != 0
}

// Resync performs the resync/handshake procedure of spec.md §4.C: close
// and reopen the transport, wait for a banner, then up to
// HandshakeAttempts rounds of "send wrap-around, wait for ok".
func (e *Engine) Resync() error {
	if e.conn != nil {
		e.Close()
	}

	conn, err := openTarget(e.target, e.cfg.Baud)
	if err != nil {
		return ferrors.Wrap(err, ferrors.KindIOTransport, "opening printer link")
	}
	e.conn = conn
	e.reader = transport.NewAsyncReader(conn, 4096)
	e.window = sendwindow.New(e.cfg.BufSize)
	e.lines = gcodeline.NewReader()
	e.lines.WhitespaceCompression(gcodeline.CompressNoNewline)

	now := time.Now()
	e.lastOk = now
	e.lastLifesign = now
	e.firstError = time.Time{}
	e.resendCount = 0
	e.ignoreOk = false

	// Step 2: tolerate an unsolicited banner for up to 3s.
	e.absorbBanner(HandshakeBannerWait)

	sentWrap := false
	for attempt := 0; attempt < HandshakeAttempts; attempt++ {
		lastLine, gotOK := e.readLineWithQuiescence(500 * time.Millisecond)
		if gotOK {
			e.log.Debug("handshake reply: %q", lastLine)
		}
		if gotOK && gcodeline.NewLine([]byte(lastLine)).StartsWith("ok") > 0 && sentWrap {
			e.printer.SetPhase(printerstate.Idle)
			return nil
		}

		if _, err := e.conn.Write([]byte(sendwindow.WrapAroundFrame)); err != nil {
			return ferrors.Wrap(err, ferrors.KindIOTransport, "sending handshake wrap-around")
		}
		sentWrap = true

		if attempt == 0 {
			time.Sleep(HandshakeFirstSleep)
		} else {
			time.Sleep(HandshakeRetrySleep)
		}
	}

	return ferrors.New(ferrors.KindIOTransport, "handshake with printer failed after 4 attempts")
}

func (e *Engine) absorbBanner(d time.Duration) {
	deadline := time.After(d)
	for {
		select {
		case chunk, ok := <-e.reader.Chunks():
			if !ok {
				return
			}
			e.lines.Feed(chunk)
			for e.lines.HasNext() {
				e.lines.Next()
			}
		case <-deadline:
			return
		}
	}
}

// readLineWithQuiescence waits for one reply line, treating d of silence
// as "nothing more is coming this round".
func (e *Engine) readLineWithQuiescence(d time.Duration) (string, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case chunk, ok := <-e.reader.Chunks():
			if !ok {
				return "", false
			}
			e.lines.Feed(chunk)
			if e.lines.HasNext() {
				l, _ := e.lines.Next()
				return l.String(), true
			}
		case <-timer.C:
			return "", false
		}
	}
}
