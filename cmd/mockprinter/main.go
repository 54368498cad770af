// mockprinter pretends to be a Marlin-based 3D printer on a Unix-domain
// socket: it sends the usual startup banner, validates incoming N-numbered,
// checksummed lines the way Marlin's serial parser does, and answers "ok"
// (or "Resend: <n>" on a checksum/line-number mismatch).
//
// Usage:
//
//	mockprinter [--resend=<when>,<what>] <socket-path>
//
// socket-path must not exist yet, or must already be a Unix socket; it is
// replaced by a fresh listening socket. --resend makes mockprinter request
// a resend of line <what> every other time it receives line <when>, for
// exercising the Protocol Engine's resend path end to end.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"marlinfeed/pkg/gcodeline"
)

const (
	msgError    = "Error:"
	msgEcho     = "echo:"
	msgResend   = "Resend: "
	msgLineNo   = "Line Number is not Last Line Number+1, Last Line: "
	msgChecksum = "checksum mismatch, Last Line: "
	msgNoCheck  = "No Checksum with line number, Last Line: "
	msgUnknown  = `Unknown command: "`
)

var welcomeText = "start\n" +
	"echo: External Reset\n" +
	"Marlin \n" +
	"echo: Last Updated: 2015-12-01 12:00 | Author: (none, default config)\n" +
	"echo:Hardcoded Default Settings Loaded\n"

var welcomeText2 = "echo:SD card ok\n"

type printerState struct {
	x, y, z, f           float64
	bed, bedTarget       float64
	nozzle, nozzleTarget float64
	relative             bool
}

func main() {
	var resendWhen, resendWhat int64 = -1, -1
	resendFlag := flag.String("resend", "", "when,what: request a resend of line <what> every other time line <when> is received")
	flag.Parse()

	if *resendFlag != "" {
		parts := strings.SplitN(*resendFlag, ",", 2)
		if len(parts) != 2 {
			fmt.Fprintln(os.Stderr, "--resend requires <when>,<what>")
			os.Exit(1)
		}
		resendWhen, _ = strconv.ParseInt(parts[0], 10, 64)
		resendWhat, _ = strconv.ParseInt(parts[1], 10, 64)
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: mockprinter [--resend=<when>,<what>] <socket-path>")
		os.Exit(1)
	}
	sockPath := flag.Arg(0)

	if info, err := os.Stat(sockPath); err == nil {
		if info.Mode()&os.ModeSocket == 0 {
			fmt.Fprintf(os.Stderr, "%s exists but is not a socket.\n", sockPath)
			os.Exit(1)
		}
		os.Remove(sockPath)
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer listener.Close()

	toggle := &resendToggle{when: resendWhen, what: resendWhat, on: true}
	for {
		conn, err := listener.Accept()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		handleConnection(conn, toggle)
	}
}

type resendToggle struct {
	when, what int64
	on         bool
}

// handleConnection drives one printer session start to finish, matching
// mocklin.cpp's handle_connection: one connection serviced fully before
// the next Accept, since a real printer's serial line has one peer.
func handleConnection(conn net.Conn, toggle *resendToggle) {
	defer conn.Close()
	fmt.Println("New connection")

	time.Sleep(1 * time.Second)
	conn.Write([]byte(welcomeText))
	time.Sleep(1 * time.Second)
	conn.Write([]byte(welcomeText2))

	reader := gcodeline.NewReader()
	reader.WhitespaceCompression(gcodeline.CompressNone)

	var lastN int64
	state := &printerState{bed: 20.1, bedTarget: 21.2, nozzle: 22.3, nozzleTarget: 23.4}

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			reader.Feed(buf[:n])
		}

		for reader.HasNext() {
			line, _ := reader.Next()
			fmt.Print(line.String())

			cmd, ok := validateAndStrip(line, &lastN, toggle, conn)
			if !ok {
				continue
			}
			sendOK := executeCommand(cmd, state, conn)
			if sendOK {
				writeAndLog(conn, "ok\n")
			}
		}

		if err != nil {
			break
		}
	}
	fmt.Println("Connection closed")
}

// validateAndStrip implements mocklin.cpp's per-line gate: an N-prefixed
// line must carry the next expected line number (M110 excepted) and a
// valid trailing "*<checksum>". On any violation it writes the matching
// error plus a resend request and returns ok=false.
func validateAndStrip(line gcodeline.Line, lastN *int64, toggle *resendToggle, conn net.Conn) (string, bool) {
	raw := line.String()
	if len(raw) == 0 || raw[0] != 'N' {
		return raw, true
	}

	isM110 := strings.Contains(raw, "M110")
	n, hasNumber := parseLineNumber(raw)
	if !hasNumber {
		return raw, true
	}

	if n != *lastN+1 && !isM110 {
		writeError(conn, msgLineNo, *lastN)
		requestResend(conn, *lastN+1)
		return "", false
	}

	if n == toggle.when {
		toggle.on = !toggle.on
		if !toggle.on {
			writeAndLog(conn, fmt.Sprintf("%sResend request triggered by line: %d\n", msgError, toggle.when))
			*lastN = toggle.what - 1
			requestResend(conn, toggle.what)
			return "", false
		}
	}

	star := strings.LastIndexByte(raw, '*')
	if star < 0 {
		writeError(conn, msgNoCheck, *lastN)
		requestResend(conn, *lastN+1)
		return "", false
	}
	body := raw[:star]
	checksum := 0
	for i := 0; i < len(body); i++ {
		checksum ^= int(body[i])
	}
	want, err := strconv.Atoi(strings.TrimSpace(raw[star+1:]))
	if err != nil || want != checksum {
		writeError(conn, msgChecksum, *lastN)
		requestResend(conn, *lastN+1)
		return "", false
	}

	*lastN = n

	cmdStart := 1
	for cmdStart < len(body) && (body[cmdStart] >= '0' && body[cmdStart] <= '9' || body[cmdStart] == '-') {
		cmdStart++
	}
	for cmdStart < len(body) && body[cmdStart] == ' ' {
		cmdStart++
	}
	return body[cmdStart:], true
}

func parseLineNumber(raw string) (int64, bool) {
	i := 1
	if strings.Contains(raw, "M110") {
		if idx := strings.Index(raw[4:], "N"); idx >= 0 {
			i = 4 + idx + 1
		}
	}
	j := i
	for j < len(raw) && (raw[j] >= '0' && raw[j] <= '9' || raw[j] == '-') {
		j++
	}
	if j == i {
		return 0, false
	}
	n, err := strconv.ParseInt(raw[i:j], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func writeError(conn net.Conn, msg string, lastN int64) {
	writeAndLog(conn, fmt.Sprintf("%s%s%d\n", msgError, msg, lastN))
}

func requestResend(conn net.Conn, next int64) {
	writeAndLog(conn, fmt.Sprintf("%s%d\nok\n", msgResend, next))
}

func writeAndLog(conn net.Conn, s string) {
	conn.Write([]byte(s))
	fmt.Print(s)
}

// executeCommand applies the small G-code subset mocklin.cpp interprets
// and reports whether the caller should still send a trailing "ok" (M105
// sends its own ok-bearing temperature line instead).
func executeCommand(cmd string, s *printerState, conn net.Conn) bool {
	line := gcodeline.NewLine([]byte(cmd))
	if len(cmd) < 2 {
		return true
	}

	switch {
	case cmd[0] == 'G' && (hasCode(cmd, "G0") || hasCode(cmd, "G1")):
		s.x = axisValue(line, "X", s.x, s.relative)
		s.y = axisValue(line, "Y", s.y, s.relative)
		s.z = axisValue(line, "Z", s.z, s.relative)
		if f, ok := line.GetDouble("F"); ok {
			s.f = f
		}
		reportPosition(s)
	case hasCode(cmd, "G28"):
		s.x, s.y, s.z = 0, 0, 0
		reportPosition(s)
	case hasCode(cmd, "G90"):
		s.relative = false
	case hasCode(cmd, "G91"):
		s.relative = true
	case hasCode(cmd, "G92"):
		s.x = axisValue(line, "X", s.x, false)
		s.y = axisValue(line, "Y", s.y, false)
		s.z = axisValue(line, "Z", s.z, false)
	case hasCode(cmd, "M105"):
		reportTemperatures(s, conn)
		return false
	case hasCode(cmd, "M104"), hasCode(cmd, "M140"):
		// set target temperature: accepted, not simulated further
	case hasCode(cmd, "M109"), hasCode(cmd, "M190"):
		// wait for temperature: mockprinter reports as already at target
	case hasCode(cmd, "M110"):
		// line number reset, already applied by validateAndStrip
	case hasCode(cmd, "M18"), hasCode(cmd, "M84"),
		hasCode(cmd, "M106"), hasCode(cmd, "M107"), hasCode(cmd, "M108"),
		hasCode(cmd, "M115"), hasCode(cmd, "M117"),
		hasCode(cmd, "M201"), hasCode(cmd, "M203"), hasCode(cmd, "M204"),
		hasCode(cmd, "M205"), hasCode(cmd, "M209"),
		hasCode(cmd, "M220"), hasCode(cmd, "M221"), hasCode(cmd, "M82"):
		// accepted no-ops, matching mocklin.cpp's stubbed command set
	default:
		writeAndLog(conn, fmt.Sprintf("%s%s%s\"\n", msgEcho, msgUnknown, cmd))
	}
	return true
}

func hasCode(cmd, code string) bool {
	if !strings.HasPrefix(cmd, code) {
		return false
	}
	if len(cmd) == len(code) {
		return true
	}
	next := cmd[len(code)]
	return next < '0' || next > '9'
}

func axisValue(line gcodeline.Line, id string, current float64, relative bool) float64 {
	v, ok := line.GetDouble(id)
	if !ok {
		return current
	}
	if relative {
		return current + v
	}
	return v
}

func reportPosition(s *printerState) {
	fmt.Printf("X %5.1f  Y %5.1f  Z %5.1f\n", s.x, s.y, s.z)
}

func reportTemperatures(s *printerState, conn net.Conn) {
	msg := fmt.Sprintf("ok T:%.1f /%.1f B:%.1f /%.1f\n", s.nozzle, s.nozzleTarget, s.bed, s.bedTarget)
	writeAndLog(conn, msg)
}
