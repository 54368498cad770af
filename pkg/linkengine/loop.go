package linkengine

import (
	"io"
	"time"

	"marlinfeed/pkg/ferrors"
	"marlinfeed/pkg/printerstate"
)

// tickInterval bounds how long the engine can go without re-checking its
// periodic timers (STALL_TIME/MAX_TIME_WITH_ERROR/MAX_TIME_SILENCE) when
// no readiness event arrives — the Go rendering of spec.md §4.C step 1's
// "periodic timers are checked after wake" over an indefinite wait.
const tickInterval = 50 * time.Millisecond

// RunJob drives one job to completion (success, failure, or the process
// being asked to pause/resume along the way). It is the Go rendering of
// marlinfeed.cpp's handle() main loop, steps 1-7.
func (e *Engine) RunJob(src *Source) JobResult {
	e.printer.StartJob(src.Name, src.SizeHint)
	e.printer.SetPhase(printerstate.Printing)
	defer func() {
		if e.printer.Phase() != printerstate.Disconnected {
			e.printer.SetPhase(printerstate.Idle)
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	readBuf := make([]byte, 4096)

	for {
		select {
		case chunk, ok := <-e.reader.Chunks():
			if !ok {
				return e.fail("printer connection lost", e.reader.Err())
			}
			e.lines.Feed(chunk)
			for e.lines.HasNext() {
				l, _ := e.lines.Next()
				if outcome, reason := e.handleReply(l.String()); outcome == replyJobFailed {
					return e.fail(reason, ferrors.New(ferrors.KindIllegalResend, reason))
				}
			}

		case line, ok := <-e.injector.Ready():
			if ok {
				e.appendIfFits(line)
			}

		case <-e.pauseCh:
			e.paused = !e.paused

		case <-ticker.C:
			// fall through to the periodic checks below
		}

		if res, done := e.checkEscalations(); done {
			return res
		}

		e.fillFromSources(src, readBuf)
		if err := e.transmit(); err != nil {
			return e.fail("printer write failed", err)
		}
		e.updatePhase(src)

		if done, res := e.checkJobEnd(src); done {
			return res
		}
	}
}

// checkEscalations applies spec.md §4.C's per-line/per-tick fatal checks:
// persistent error window and silence timeout.
func (e *Engine) checkEscalations() (JobResult, bool) {
	now := time.Now()
	if !e.firstError.IsZero() && now.Sub(e.firstError) > MaxTimeWithError {
		return e.fail("Persistent error state on printer", nil), true
	}
	if e.resendCount > ResendStormLimit {
		return e.fail("resend storm", ferrors.New(ferrors.KindResendStorm, "resend storm")), true
	}
	if e.window != nil && e.window.NeedsAck() && now.Sub(e.lastLifesign) > MaxTimeSilence {
		return e.fail("Printer timeout waiting for ack", ferrors.New(ferrors.KindSilence, "Printer timeout waiting for ack")), true
	}
	return JobResult{}, false
}

// appendIfFits appends an injected or job-sourced line if it currently
// fits the window, matching window.append's documented precondition.
func (e *Engine) appendIfFits(line string) bool {
	if len(line) > e.window.MaxAppendLen() {
		return false
	}
	e.window.Append(line)
	return true
}

// fillFromSources drains the injection channel (priority) and the job
// source into the send window, per spec.md §4.C step 3.
func (e *Engine) fillFromSources(src *Source, readBuf []byte) {
	for {
		if line, ok := e.injector.TryNext(); ok {
			e.appendIfFits(line)
			continue
		}
		break
	}

	if e.paused || src.eof {
		return
	}

	for {
		if !src.hasPending {
			if !src.Reader.HasNext() {
				if !e.pullMoreSourceBytes(src, readBuf) {
					return
				}
				continue
			}
			l, _ := src.Reader.Next()
			if l.Length() == 0 {
				continue
			}
			src.pending, src.hasPending = l.String(), true
		}

		if len(src.pending) > e.window.MaxAppendLen() {
			// Window has no room for it right now; leave it pending and
			// try again next tick once acks free up space.
			return
		}
		e.window.Append(src.pending)
		src.hasPending = false

		if t := src.Reader.EstimatedPrintTime(); t > 0 {
			e.printer.SetEstimatedPrintTime(int64(t))
		} else {
			e.printer.SetBytesRead(int64(src.Reader.TotalBytesRead()))
		}
	}
}

func (e *Engine) pullMoreSourceBytes(src *Source, buf []byte) bool {
	if src.eof {
		return false
	}
	n, err := src.Feed(buf)
	if n > 0 {
		src.Reader.Feed(buf[:n])
	}
	if err != nil {
		src.eof = true
		return src.Reader.HasNext()
	}
	return true
}

// transmit ships every frame the window will yield, blocking on each
// write (spec.md §5's explicitly allowed suspension point outside the
// main wait).
func (e *Engine) transmit() error {
	for e.window.HasNext() {
		frame := e.window.Next()
		e.log.EchoFrame("->", frame)
		if _, err := e.conn.Write(frame); err != nil {
			return err
		}
	}
	return nil
}

// updatePhase applies spec.md §4.C step 5.
func (e *Engine) updatePhase(src *Source) {
	switch {
	case e.paused:
		e.printer.SetPhase(printerstate.Paused)
	case (src.hasPending || e.window.HasNext()) && time.Since(e.lastOk) > StallTime:
		e.printer.SetPhase(printerstate.Stalled)
	default:
		e.printer.SetPhase(printerstate.Printing)
	}
}

// checkJobEnd applies spec.md §4.C step 7.
func (e *Engine) checkJobEnd(src *Source) (bool, JobResult) {
	if src.eof && !src.hasPending && !src.Reader.HasNext() && !e.window.HasNext() && !e.window.NeedsAck() {
		return true, JobResult{Success: true}
	}
	return false, JobResult{}
}

func (e *Engine) fail(reason string, err error) JobResult {
	e.printer.SetPhase(printerstate.Disconnected)
	if err == nil {
		err = ferrors.New(ferrors.KindPersistentError, reason)
	}
	e.log.Error("job failed: %s", reason)
	return JobResult{Success: false, Reason: reason, Err: err}
}

// FeedFromReadCloser adapts an io.ReadCloser (an opened job file, or
// stdin) into a Source.Feed function, returning ferrors.KindEOFSource on
// exhaustion per spec.md §7's error table.
func FeedFromReadCloser(rc io.ReadCloser) func([]byte) (int, error) {
	return func(buf []byte) (int, error) {
		n, err := rc.Read(buf)
		if err == io.EOF {
			return n, ferrors.New(ferrors.KindEOFSource, "job source exhausted")
		}
		return n, err
	}
}
