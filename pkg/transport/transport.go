// Package transport implements the raw byte-stream wrappers for the
// printer link: TTY (serial), Unix-domain socket, and TCP. All three
// present the same Conn interface to the Protocol Engine (pkg/linkengine).
//
// Grounded on original_source/src/file.h's File class: a single owning
// wrapper around a file descriptor that latches the first error and turns
// every subsequent operation into a no-op ("broken object" pattern,
// spec.md §9 Design Notes). Translated here as a Result-style API (Read/
// Write return an error) plus Conn.Err()/Conn.Broken() for callers that
// want the batch-then-check-once style the original uses.
package transport

import (
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/tarm/serial"

	"marlinfeed/pkg/ferrors"
)

// Conn is a byte-stream connection to a printer or HTTP peer. Reads and
// writes are ordinary blocking calls; non-blocking readiness is achieved
// by a dedicated reader goroutine pushing into a channel (see AsyncReader),
// the idiomatic Go substitute for original_source's poll()-based
// multiplexing.
type Conn interface {
	io.ReadWriteCloser

	// Err returns the latched error, if the connection has broken.
	Err() error

	// Broken reports whether a prior operation has latched an error.
	// Once true, Read/Write are no-ops that keep returning Err().
	Broken() bool
}

// conn is the shared "broken object" implementation wrapping an
// underlying io.ReadWriteCloser.
type conn struct {
	mu      sync.Mutex
	rwc     io.ReadWriteCloser
	title   string // used in error messages, e.g. "opening printer device"
	err     error
}

func wrap(rwc io.ReadWriteCloser, title string) *conn {
	return &conn{rwc: rwc, title: title}
}

func (c *conn) Broken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err != nil
}

func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *conn) latch(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil && err != nil {
		if le, ok := err.(*ferrors.LinkError); ok {
			c.err = le
		} else {
			c.err = ferrors.Wrap(err, ferrors.KindIOTransport, fmt.Sprintf("error %s", c.title))
		}
	}
	return c.err
}

func (c *conn) Read(p []byte) (int, error) {
	if c.Broken() {
		return 0, c.Err()
	}
	n, err := c.rwc.Read(p)
	if err != nil && err != io.EOF {
		return n, c.latch(err)
	}
	if err == io.EOF {
		return n, c.latch(ferrors.New(ferrors.KindEOFPrinter, "printer connection closed"))
	}
	return n, nil
}

func (c *conn) Write(p []byte) (int, error) {
	if c.Broken() {
		return 0, c.Err()
	}
	n, err := c.rwc.Write(p)
	if err != nil {
		return n, c.latch(err)
	}
	return n, nil
}

func (c *conn) Close() error {
	return c.rwc.Close()
}

// OpenTTY opens and configures a serial device: raw mode, the given baud
// rate (115200 if 0), VMIN=1/VTIME=0 (tarm/serial's setting when
// ReadTimeout is left at zero), no flow control.
//
// Grounded on original_source/src/file.h's setupTTY(); the termios detail
// (cfmakeraw, VMIN/VTIME) is delegated to github.com/tarm/serial rather
// than hand-rolled, per SPEC_FULL.md's domain-stack decision.
func OpenTTY(device string, baud int) (Conn, error) {
	if baud == 0 {
		baud = 115200
	}
	cfg := &serial.Config{
		Name: device,
		Baud: baud,
	}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindIOTransport, "opening printer device "+device)
	}
	return wrap(port, "talking to "+device), nil
}

// OpenUnixSocket connects to a Unix-domain stream socket at path.
func OpenUnixSocket(path string) (Conn, error) {
	c, err := net.Dial("unix", path)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindIOTransport, "connecting to "+path)
	}
	return wrap(c, "talking to "+path), nil
}

// OpenTCP connects to a TCP address of the form host:port, for a printer
// reachable over the network. This package only dials; it has no
// listening counterpart.
func OpenTCP(addr string) (Conn, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindIOTransport, "connecting to "+addr)
	}
	return wrap(c, "talking to "+addr), nil
}

// Open dispatches on the shape of target: a host:port pair, a path that
// exists as a Unix socket, or (by default) a TTY device path.
func Open(target string, baud int, socketKind func(path string) bool) (Conn, error) {
	if looksLikeHostPort(target) {
		return OpenTCP(target)
	}
	if socketKind != nil && socketKind(target) {
		return OpenUnixSocket(target)
	}
	return OpenTTY(target, baud)
}

func looksLikeHostPort(target string) bool {
	host, port, err := net.SplitHostPort(target)
	if err != nil {
		return false
	}
	return host != "" && port != "" && !strings.HasPrefix(target, "/")
}

// BindLoopbackOnly reports whether host should be restricted to the
// loopback interface, per spec.md §6: localhost, 127.0.0.1, ::1 and the
// empty host bind loopback; anything else binds all interfaces.
func BindLoopbackOnly(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1", "":
		return true
	default:
		return false
	}
}
