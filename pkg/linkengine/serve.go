package linkengine

import (
	"time"

	"marlinfeed/pkg/ferrors"
	"marlinfeed/pkg/jobqueue"
)

// pollInterval is how long Serve waits before re-checking the job queue
// when nothing is currently available (the directory watcher's debounce
// may still be ripening a candidate), matching marlinfeed.cpp's
// usleep(250000) "don't burn cycles waiting for files" spin guard.
const pollInterval = 250 * time.Millisecond

// OpenSourceFunc builds a Source for a queued job path ("-" for stdin).
// It lives outside pkg/linkengine because opening a path is an OS concern
// owned by cmd/marlinfeed, not the engine.
type OpenSourceFunc func(path string) (*Source, func(), error)

// Serve is the Job Controller's drive loop (spec component E wired to
// component C): it resyncs the printer link, then repeatedly pulls the
// next queued source and runs it to completion, applying q.Policy() and
// jobqueue.HardFaultBackoff on hard faults, until the queue can never
// produce another job.
//
// Grounded on original_source/src/marlinfeed.cpp's main() for-loop
// (infile_queue draining, hard_error_count escalating backoff,
// ioerror_next deciding whether a failure ends the process).
func (e *Engine) Serve(q *jobqueue.Queue, open OpenSourceFunc) error {
	hardErrorCount := 0

	for {
		if q.Empty() {
			return nil
		}

		path, ok := q.Next()
		if !ok {
			time.Sleep(pollInterval)
			continue
		}

		if e.conn == nil || e.conn.Broken() {
			if err := e.Resync(); err != nil {
				e.log.Error("resync failed: %v", err)
				if q.Policy() == jobqueue.PolicyQuit {
					return err
				}
				if hardErrorCount < 4 {
					hardErrorCount++
				}
				backoff := time.Duration(hardErrorCount) * jobqueue.HardFaultBackoff
				e.log.Warn("suspending operation for %s in hopes the hard error will disappear", backoff)
				time.Sleep(backoff)
				continue
			}
		}

		src, closeSrc, err := open(path)
		if err != nil {
			e.log.Error("opening job source %q: %v", path, err)
			if q.Policy() == jobqueue.PolicyQuit {
				return err
			}
			continue
		}

		started := time.Now()
		result := e.RunJob(src)
		ended := time.Now()
		if closeSrc != nil {
			closeSrc()
		}
		if e.OnJobEnd != nil {
			e.OnJobEnd(src.Name, result, started, ended)
		}

		if result.Success {
			hardErrorCount = 0
			continue
		}

		e.log.Error("job %q failed: %s", path, result.Reason)
		if ferrors.Is(result.Err, ferrors.KindIOTransport) || ferrors.Is(result.Err, ferrors.KindEOFPrinter) {
			e.Close()
		}
		if q.Policy() == jobqueue.PolicyQuit {
			return result.Err
		}
	}
}
