// Package gcodeline implements the Line Reader (spec component A): it
// extracts framed G-code lines from a byte stream, normalizes whitespace,
// and strips/parses slicer comments.
//
// Grounded on original_source/src/gcode.h's gcode::Line and gcode::Reader
// classes, translated into idiomatic Go: Line owns no pointers into a
// shared buffer beyond its own byte slice, and Reader is a pure byte-sink
// with no I/O of its own — callers feed it bytes already read from a
// transport (see pkg/transport), matching spec.md's explicit separation
// of the Line Reader from the raw stream wrapper.
package gcodeline

import (
	"strconv"
	"strings"
)

// Line is an immutable-per-send slice of G-code text plus its length.
// No owning references to source buffers escape a Line: Slice operates
// in place on the Line's own backing slice.
type Line struct {
	text []byte
}

// NewLine wraps raw bytes as a Line. The caller must not mutate data
// afterward if it intends to keep using the Line.
func NewLine(data []byte) Line {
	return Line{text: data}
}

// Data returns the line's current byte content.
func (l Line) Data() []byte { return l.text }

// String returns the line's current content as a string.
func (l Line) String() string { return string(l.text) }

// Length returns the number of bytes currently in the line.
func (l Line) Length() int { return len(l.text) }

func isAlnum(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r'
}

// Number parses a leading decimal integer (optionally signed, optionally
// preceded by whitespace). Returns ok=false if no digits were found.
func (l Line) Number() (int64, bool) {
	i := 0
	for i < len(l.text) && isSpace(l.text[i]) {
		i++
	}
	start := i
	if i < len(l.text) && (l.text[i] == '+' || l.text[i] == '-') {
		i++
	}
	digitsStart := i
	for i < len(l.text) && l.text[i] >= '0' && l.text[i] <= '9' {
		i++
	}
	if i == digitsStart {
		return 0, false
	}
	n, err := strconv.ParseInt(string(l.text[start:i]), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// findWordAdjacent returns the index just past id's first occurrence that is
// word-adjacent (preceded by start-of-line or a non-alphanumeric byte), or
// -1 if id does not occur.
func (l Line) findWordAdjacent(id string) int {
	text := string(l.text)
	search := text
	offset := 0
	for {
		idx := strings.Index(search, id)
		if idx < 0 {
			return -1
		}
		abs := offset + idx
		if abs == 0 || !isAlnum(l.text[abs-1]) {
			return abs + len(id)
		}
		offset = abs + 1
		search = text[offset:]
	}
}

// GetDouble locates a named numeric field (e.g. "X", "F", "TIME:") that is
// word-adjacent, skips one separator character (':', '=' or whitespace),
// and parses the following floating point literal.
func (l Line) GetDouble(id string) (float64, bool) {
	pos := l.findWordAdjacent(id)
	if pos < 0 {
		return 0, false
	}
	if pos < len(l.text) && (l.text[pos] == ':' || l.text[pos] == '=' || isSpace(l.text[pos])) {
		pos++
	}
	start := pos
	if pos < len(l.text) && (l.text[pos] == '+' || l.text[pos] == '-') {
		pos++
	}
	for pos < len(l.text) && (l.text[pos] >= '0' && l.text[pos] <= '9' || l.text[pos] == '.') {
		pos++
	}
	if pos == start {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(l.text[start:pos]), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// GetString locates a named quoted-string field (e.g. `"command"` in a
// JSON body) and returns the unquoted value.
func (l Line) GetString(id string) (string, bool) {
	pos := l.findWordAdjacent(id)
	if pos < 0 {
		return "", false
	}
	for pos < len(l.text) && (l.text[pos] == ':' || l.text[pos] == '=' || isSpace(l.text[pos]) || l.text[pos] == ',') {
		pos++
	}
	if pos >= len(l.text) || l.text[pos] != '"' {
		return "", false
	}
	pos++
	start := pos
	for pos < len(l.text) && l.text[pos] != '"' {
		pos++
	}
	if pos >= len(l.text) {
		return "", false
	}
	return string(l.text[start:pos]), true
}

// boundaryMark is the embedded escape byte used in StartsWith patterns to
// denote a word-boundary check, matching original_source's "\b" convention.
const boundaryMark = '\b'

// StartsWith matches pattern against the start of the line. A literal
// boundaryMark byte in pattern checks that the current position is a word
// boundary: start/end of line, or exactly one of the neighboring bytes is
// alphanumeric. Any whitespace immediately following a satisfied boundary
// is consumed and counted in the returned length. Returns the matched
// length (>= the non-boundary length of pattern), or 0 on failure.
func (l Line) StartsWith(pattern string) int {
	data := l.text
	di := 0
	for pi := 0; pi < len(pattern); pi++ {
		if pattern[pi] == boundaryMark {
			atStart := di == 0
			atEnd := di == len(data)
			var leftAlnum, rightAlnum bool
			if !atStart {
				leftAlnum = isAlnum(data[di-1])
			}
			if !atEnd {
				rightAlnum = isAlnum(data[di])
			}
			if !(atStart || atEnd || leftAlnum != rightAlnum) {
				return 0
			}
			for di < len(data) && (data[di] == ' ' || data[di] == '\t') {
				di++
			}
			continue
		}
		if di >= len(data) || data[di] != pattern[pi] {
			return 0
		}
		di++
	}
	return di
}

// Slice mutates the line in place to the half-open range [idx1, idx2).
// Negative indices are translated by adding the length; results are
// clamped to [0, length]; the line becomes empty if idx2 <= idx1.
// idx2 defaults to the line's current length when omitted.
func (l *Line) Slice(idx1 int, idx2 ...int) {
	n := len(l.text)
	end := n
	if len(idx2) > 0 {
		end = idx2[0]
	}

	if idx1 < 0 {
		idx1 += n
	}
	if end < 0 {
		end += n
	}
	if idx1 < 0 {
		idx1 = 0
	}
	if end < 0 {
		end = 0
	}
	if idx1 > n {
		idx1 = n
	}
	if end > n {
		end = n
	}
	if end <= idx1 {
		l.text = l.text[:0]
		return
	}
	l.text = l.text[idx1:end]
}
