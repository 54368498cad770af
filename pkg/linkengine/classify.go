package linkengine

import (
	"strconv"
	"strings"
	"time"

	"marlinfeed/pkg/gcodeline"
)

// replyOutcome is what processing one printer reply line implies for the
// caller's control flow.
type replyOutcome int

const (
	replyContinue replyOutcome = iota
	replyJobFailed
)

// handleReply classifies and applies one printer reply line, per
// spec.md §4.C's main-loop step 2. Returns replyJobFailed with a reason
// if the reply proves fatal to the current job (illegal resend only;
// persistent-error/silence are checked by the caller after every line,
// not here, since they are a function of elapsed time rather than a
// single line).
func (e *Engine) handleReply(line string) (replyOutcome, string) {
	now := time.Now()
	e.lastLifesign = now

	l := gcodeline.NewLine([]byte(line))

	if n := l.StartsWith("ok\b"); n > 0 {
		e.lastOk = now
		if e.ignoreOk {
			e.ignoreOk = false
		} else if !e.window.Ack() {
			e.log.Warn("spurious ok received with no outstanding frame")
		}
		e.resendCount = 0
		e.firstError = time.Time{}

		rest := strings.TrimSpace(line[n:])
		if rest != "" {
			e.printer.ParseTemperatureReport(rest)
		}
		return replyContinue, ""
	}

	if l.StartsWith("T:") > 0 || l.StartsWith("T0:") > 0 || l.StartsWith("T1:") > 0 || l.StartsWith("B:") > 0 {
		e.printer.ParseTemperatureReport(line)
		return replyContinue, ""
	}

	if l.StartsWith("Error:") > 0 {
		if e.firstError.IsZero() {
			e.firstError = now
		}
		e.log.Warn("printer reported: %s", line)
		return replyContinue, ""
	}

	if n := l.StartsWith("Resend:"); n > 0 {
		if e.firstError.IsZero() {
			e.firstError = now
		}
		e.resendCount++

		numStr := strings.TrimSpace(line[n:])
		lineNo, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil || lineNo < 0 || lineNo > (1<<31)-1 {
			return replyJobFailed, "illegal Resend: line number"
		}
		if !e.window.Seek(int(lineNo)) {
			return replyJobFailed, "illegal Resend: unknown line number"
		}
		e.ignoreOk = true
		time.Sleep(ResendSettleSleep)
		return replyContinue, ""
	}

	e.log.Debug("unrecognized printer reply: %q", line)
	return replyContinue, ""
}
