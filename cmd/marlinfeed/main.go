// marlinfeed streams G-code to a Marlin-compatible 3D printer over a
// serial line or stream socket, optionally exposing an Octoprint-subset
// HTTP surface so slicers can upload jobs, watch state, and inject
// commands.
//
// Usage:
//
//	marlinfeed [options] [source ...] <device>
//
// Options:
//
//	--api string      Enable the HTTP surface at this base URL (port is
//	                   extracted from it unless --port overrides)
//	--port int         HTTP port override (default 8080, range 10..65535)
//	--localhost        Bind the HTTP surface to loopback only
//	--ioerror string   "next" or "quit" after a job fails (default depends
//	                   on whether --api is set)
//	--metrics string   Optional address for a second, Prometheus /metrics
//	                   listener (e.g. ":9100")
//	-v                 Increase wire/log verbosity; repeatable, 0..4
//
// A source is a G-code file, a directory to watch for new .gcode files,
// or "-" for standard input. The final positional argument is always the
// printer device: a TTY path, a Unix-domain socket path, or a
// host:port. SIGUSR1 toggles pause.
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"marlinfeed/pkg/gcodeline"
	"marlinfeed/pkg/history"
	"marlinfeed/pkg/httpapi"
	"marlinfeed/pkg/injection"
	"marlinfeed/pkg/jobqueue"
	"marlinfeed/pkg/linkengine"
	"marlinfeed/pkg/logging"
	"marlinfeed/pkg/metrics"
	"marlinfeed/pkg/printerstate"
)

type verbosity int

func (v *verbosity) String() string   { return strconv.Itoa(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }
func (v *verbosity) Set(string) error { *v++; return nil }

func main() {
	apiBase := flag.String("api", "", `enable the HTTP surface, e.g. --api=http://0.0.0.0:8080`)
	port := flag.Int("port", 0, "HTTP port override (default 8080, range 10..65535)")
	localhost := flag.Bool("localhost", false, "bind the HTTP surface to loopback only")
	ioerror := flag.String("ioerror", "", `"next" or "quit" after a job fails`)
	metricsAddr := flag.String("metrics", "", "optional address for a Prometheus /metrics listener")
	uploadDir := flag.String("uploaddir", "", "upload directory (default: a fresh /tmp/marlinfeed-XXXXXXXX)")
	var verbose verbosity
	flag.Var(&verbose, "v", "increase log/wire verbosity; repeatable, 0..4")
	flag.Parse()

	log := logging.New("marlinfeed")

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: marlinfeed [options] [source ...] <device>")
		flag.Usage()
		os.Exit(1)
	}
	device := args[len(args)-1]
	sources := args[:len(args)-1]

	httpEnabled := *apiBase != ""
	policy := jobqueue.DefaultPolicy(httpEnabled)
	switch *ioerror {
	case "next":
		policy = jobqueue.PolicyNext
	case "quit":
		policy = jobqueue.PolicyQuit
	case "":
		// keep the httpEnabled-derived default
	default:
		log.Error("invalid --ioerror value %q, must be \"next\" or \"quit\"", *ioerror)
		os.Exit(1)
	}

	dir := *uploadDir
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("/tmp", "marlinfeed-")
		if err != nil {
			log.Error("creating upload directory: %v", err)
			os.Exit(1)
		}
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		log.Error("creating upload directory %q: %v", dir, err)
		os.Exit(1)
	}

	printer := printerstate.New()
	injector := injection.New(64)
	hist := history.New(64)
	fm := metrics.GlobalMetrics()

	queue := jobqueue.New(sources, isDir, policy)

	engineCfg := linkengine.Config{Verbosity: int(verbose)}
	engine := linkengine.New(device, engineCfg, printer, injector, log)
	engine.OnJobEnd = func(name string, result linkengine.JobResult, started, ended time.Time) {
		reason := result.Reason
		hist.Record(name, result.Success, reason, started, ended)
		fm.RecordJobEnd(result.Success, ended.Sub(started))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	signal.Ignore(syscall.SIGPIPE)
	go func() {
		for range sigCh {
			engine.TogglePause()
		}
	}()

	if httpEnabled {
		addr, err := httpAddr(*apiBase, *port, *localhost)
		if err != nil {
			log.Error("parsing --api: %v", err)
			os.Exit(1)
		}
		srv := httpapi.New(httpapi.Config{
			Addr:        addr,
			UploadDir:   dir,
			Printer:     printer,
			Injector:    injector,
			Queue:       queue,
			History:     hist,
			TogglePause: engine.TogglePause,
			Log:         log,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.Error("HTTP surface stopped: %v", err)
			}
		}()
		log.Info("HTTP surface listening on %s, uploading to %s", addr, dir)
	}

	if *metricsAddr != "" {
		ms := metrics.NewMetricsServer(fm, *metricsAddr)
		go func() {
			if err := ms.Start(); err != nil {
				log.Error("metrics listener stopped: %v", err)
			}
		}()
		log.Info("metrics listening on %s", *metricsAddr)
	}

	if err := engine.Serve(queue, openSource); err != nil {
		log.Error("marlinfeed exiting: %v", err)
		os.Exit(1)
	}
}

// isDir reports whether path names an existing directory, the test
// jobqueue.New uses to decide whether a positional source argument
// becomes a one-shot queue entry or a watch root.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// openSource implements linkengine.OpenSourceFunc: it opens a job path
// (or stdin for "-") and wraps it in a fresh line reader, matching
// original_source/src/marlinfeed.cpp's per-job file handle lifecycle.
func openSource(path string) (*linkengine.Source, func(), error) {
	var f *os.File
	var size int64

	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
	}

	src := &linkengine.Source{
		Reader:   gcodeline.NewReader(),
		Name:     filepath.Base(path),
		SizeHint: size,
		Feed:     linkengine.FeedFromReadCloser(f),
	}
	closer := func() {
		if f != os.Stdin {
			f.Close()
		}
	}
	return src, closer, nil
}

// httpAddr resolves spec.md §6's --api/--port/--localhost trio into a
// host:port listen address. --port, when given, always wins over any
// port embedded in --api; --localhost forces loopback regardless of what
// host --api names.
func httpAddr(apiBase string, portFlag int, localhostFlag bool) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	portStr := u.Port()

	port := 8080
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", fmt.Errorf("invalid port in %q: %w", apiBase, err)
		}
		port = p
	}
	if portFlag != 0 {
		port = portFlag
	}
	if port < 10 || port > 65535 {
		return "", fmt.Errorf("port %d out of range 10..65535", port)
	}

	if localhostFlag || host == "" || strings.EqualFold(host, "localhost") {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, port), nil
}
