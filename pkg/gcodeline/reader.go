package gcodeline

import (
	"strconv"
)

// Whitespace compression levels, matching spec.md §4.A exactly.
const (
	CompressNone      = 0 // verbatim
	CompressCollapse  = 1 // runs collapse to one space; trailing newline kept
	CompressNoSpaces  = 2 // all whitespace removed except terminating newline
	CompressNoNewline = 3 // all whitespace removed, newline included
)

const (
	maxLineLen    = 1024 // oversize lines are emitted as split fragments
	commentBufCap = 64
	minPrintTime  = 1
	maxPrintTime  = 8640000
)

// Reader turns a stream of raw bytes (fed via Feed) into a sequence of
// framed Lines, applying whitespace compression and slicer-comment
// extraction. It performs no I/O itself: the caller reads from a
// transport and pushes the bytes it obtained.
type Reader struct {
	level       int
	commentChar byte

	pending    []byte // bytes accumulated for the line in progress
	inComment  bool
	commentBuf []byte
	pendingSp  bool // deferred single space (CompressCollapse)

	ready          [][]byte // completed lines awaiting next()
	rawBuf         []byte   // bytes not yet scanned (for raw()/discard())
	totalBytes     int
	estimatedTime  int
}

// NewReader creates a Reader with whitespace compression level 1 and ';'
// as the comment character, the same defaults original_source uses for
// printer replies.
func NewReader() *Reader {
	return &Reader{
		level:       CompressCollapse,
		commentChar: ';',
	}
}

// WhitespaceCompression sets the compression level (0..3).
func (r *Reader) WhitespaceCompression(level int) { r.level = level }

// CommentChar sets the character that begins a discard-until-newline
// comment span. Setting it to a byte that cannot occur mid-line (e.g.
// '\n') effectively disables comment parsing, matching
// original_source's use of commentChar('\n') for HTTP request bodies.
func (r *Reader) CommentChar(c byte) { r.commentChar = c }

// TotalBytesRead returns the cumulative count of bytes ever fed in.
func (r *Reader) TotalBytesRead() int { return r.totalBytes }

// EstimatedPrintTime returns the most recently parsed ";TIME:<seconds>"
// value, or 0 if none has been seen.
func (r *Reader) EstimatedPrintTime() int { return r.estimatedTime }

// HasNext reports whether a complete line is waiting to be consumed.
func (r *Reader) HasNext() bool { return len(r.ready) > 0 }

// Next pops and returns the oldest ready line.
func (r *Reader) Next() (Line, bool) {
	if len(r.ready) == 0 {
		return Line{}, false
	}
	data := r.ready[0]
	r.ready = r.ready[1:]
	return NewLine(data), true
}

// Raw drains up to len(dest) unscanned buffered bytes verbatim into dest,
// discarding any partial line/comment state in progress. Returns the
// number of bytes copied.
func (r *Reader) Raw(dest []byte) int {
	n := copy(dest, r.rawBuf)
	r.rawBuf = r.rawBuf[n:]
	r.resetLineState()
	return n
}

// Discard drops all buffered unscanned bytes and returns how many were
// discarded.
func (r *Reader) Discard() int {
	n := len(r.rawBuf)
	r.rawBuf = nil
	r.resetLineState()
	return n
}

func (r *Reader) resetLineState() {
	r.pending = r.pending[:0]
	r.inComment = false
	r.commentBuf = r.commentBuf[:0]
	r.pendingSp = false
}

// Feed supplies newly read bytes from the underlying transport and scans
// as many complete lines out of them as possible.
func (r *Reader) Feed(data []byte) {
	r.totalBytes += len(data)
	r.rawBuf = append(r.rawBuf, data...)

	consumed := 0
	for _, c := range r.rawBuf {
		consumed++
		r.feedByte(c)
	}
	r.rawBuf = r.rawBuf[:0]
}

func (r *Reader) feedByte(c byte) {
	if r.inComment {
		if c == '\n' {
			r.inComment = false
			r.parseComment()
			r.finishLine()
			return
		}
		if len(r.commentBuf) < commentBufCap {
			r.commentBuf = append(r.commentBuf, c)
		}
		return
	}

	if c == r.commentChar {
		r.inComment = true
		r.commentBuf = r.commentBuf[:0]
		return
	}

	if c == '\n' {
		r.finishLine()
		return
	}

	r.appendContent(c)

	if len(r.pending) >= maxLineLen {
		// Oversize line: emit what we have as a split fragment, without
		// a trailing newline, and keep scanning.
		line := make([]byte, len(r.pending))
		copy(line, r.pending)
		r.ready = append(r.ready, line)
		r.pending = r.pending[:0]
		r.pendingSp = false
	}
}

func isLineWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func (r *Reader) appendContent(c byte) {
	switch r.level {
	case CompressNone:
		r.pending = append(r.pending, c)
	case CompressCollapse:
		if isLineWhitespace(c) {
			if len(r.pending) > 0 {
				r.pendingSp = true
			}
			return
		}
		if r.pendingSp {
			r.pending = append(r.pending, ' ')
			r.pendingSp = false
		}
		r.pending = append(r.pending, c)
	default: // CompressNoSpaces, CompressNoNewline
		if isLineWhitespace(c) {
			return
		}
		r.pending = append(r.pending, c)
	}
}

func (r *Reader) finishLine() {
	r.pendingSp = false
	if r.level != CompressNoNewline {
		r.pending = append(r.pending, '\n')
	}
	line := make([]byte, len(r.pending))
	copy(line, r.pending)
	r.ready = append(r.ready, line)
	r.pending = r.pending[:0]
}

// parseComment checks whether the buffered comment text begins with
// "TIME:<seconds>", bounded 0 < seconds < 8,640,000, matching
// original_source's parseComment(), which anchors the check with
// strncmp("TIME:", combuf, 5) == 0 rather than searching for it anywhere
// in the comment.
func (r *Reader) parseComment() {
	s := string(r.commentBuf)
	const prefix = "TIME:"
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return
	}
	start := len(prefix)
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return
	}
	v, err := strconv.Atoi(s[start:end])
	if err != nil {
		return
	}
	if v > 0 && v < maxPrintTime {
		r.estimatedTime = v
	}
}
