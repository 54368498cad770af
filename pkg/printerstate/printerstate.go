// Package printerstate implements the Printer State component (spec
// component D): a thread-safe, mutation-through-events snapshot of
// temperatures and job progress, with JSON renderers matching Octoprint's
// /api/printer and /api/job documents.
//
// Grounded on original_source/src/marlinfeed.cpp's PrinterState class
// (phase enum, operator=(Enum) pause/job-timing bookkeeping,
// parseTemperatureReport, jobJSON/toJSON), with the pause-duration
// accounting pattern cross-checked against the teacher's
// pkg/hosth4/print_stats.go (printStartTime/lastPauseTime/
// prevPauseDuration).
package printerstate

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Phase is the printer's observable phase, distinct from (but derived
// from) the Protocol Engine's internal dialogue state.
type Phase int

const (
	Disconnected Phase = iota
	Idle
	Printing
	Stalled
	Paused
)

func (p Phase) octoprintText() string {
	switch p {
	case Printing, Stalled:
		return "Printing"
	case Paused:
		return "Paused"
	default:
		return "Operational"
	}
}

// TempReading is one heater's actual/target pair.
type TempReading struct {
	Actual float64
	Target float64
}

// State is the mutable printer snapshot. All mutation happens from the
// Protocol Engine's single goroutine; reads happen from HTTP worker
// goroutines through the mutex, matching spec.md §5's "point-in-time
// snapshot" rule (workers never touch B or the engine's internals
// directly, only this rendered state).
type State struct {
	mu sync.Mutex

	phase Phase

	tool0, tool1, bed TempReading

	fileName       string
	printSize      int64
	printedBytes   int64
	estimatedSecs  int64 // slicer-reported total print time, 0 if unknown
	startTime      time.Time
	pauseStart     time.Time
	accumPause     time.Duration
}

// New returns a State starting Disconnected with no job.
func New() *State {
	return &State{phase: Disconnected}
}

// SetPhase transitions the phase, applying the same job-timer side
// effects as the original's PrinterState::operator=(Enum): entering
// Printing (from a non-active phase) starts the job clock; entering/
// leaving Paused starts/accumulates the pause clock; leaving all active
// phases clears the job.
func (s *State) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasActive := s.phase == Printing || s.phase == Stalled || s.phase == Paused
	willBeActive := p == Printing || p == Stalled || p == Paused

	if !willBeActive {
		s.clearJobLocked()
	}
	if p == Printing && !wasActive {
		s.startTime = time.Now()
	}
	if p == Paused && s.phase != Paused {
		s.pauseStart = time.Now()
	}
	if s.phase == Paused && p != Paused {
		s.accumPause += time.Since(s.pauseStart)
		s.pauseStart = time.Time{}
	}
	s.phase = p
}

func (s *State) clearJobLocked() {
	s.fileName = ""
	s.printSize = 0
	s.printedBytes = 0
	s.estimatedSecs = 0
	s.startTime = time.Time{}
	s.pauseStart = time.Time{}
	s.accumPause = 0
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// StartJob records a new job's file name and size in bytes.
func (s *State) StartJob(fileName string, sizeBytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearJobLocked()
	s.fileName = fileName
	s.printSize = sizeBytes
}

// SetEstimatedPrintTime records a slicer-parsed ";TIME:<seconds>" value,
// ignored if non-positive (matches the original's `if (seconds > 0)`).
func (s *State) SetEstimatedPrintTime(seconds int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seconds > 0 {
		s.estimatedSecs = seconds
	}
}

// SetBytesRead records the Line Reader's cumulative byte counter for the
// current job, used as the progress fallback when no slicer estimate was
// parsed.
func (s *State) SetBytesRead(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printedBytes = n
}

// ParseTemperatureReport updates tool0/tool1/bed from a Marlin "T:.. B:.."
// style line, port of PrinterState::parseTemperatureReport's small
// hand-rolled scanner.
func (s *State) ParseTemperatureReport(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *TempReading
	idx := 0 // 0 = actual, 1 = target
	p := line
	for len(p) > 0 {
		switch {
		case strings.HasPrefix(p, "T0:"):
			target, idx, p = &s.tool0, 0, p[3:]
		case strings.HasPrefix(p, "T1:"):
			target, idx, p = &s.tool1, 0, p[3:]
		case strings.HasPrefix(p, "T:"):
			target, idx, p = &s.tool0, 0, p[2:]
		case strings.HasPrefix(p, "B:"):
			target, idx, p = &s.bed, 0, p[2:]
		case strings.HasPrefix(p, "/"):
			idx, p = 1, p[1:]
		default:
			colon := strings.IndexByte(p, ':')
			if colon < 0 {
				return
			}
			target = nil
			p = p[colon+1:]
		}

		p = strings.TrimLeft(p, " \t")
		end := 0
		for end < len(p) && (p[end] == '+' || p[end] == '-' || p[end] == '.' || (p[end] >= '0' && p[end] <= '9')) {
			end++
		}
		if end == 0 {
			return
		}
		v, err := strconv.ParseFloat(p[:end], 64)
		p = p[end:]
		p = strings.TrimLeft(p, " \t")
		if err != nil || target == nil {
			continue
		}
		if idx == 0 {
			target.Actual = v
		} else {
			target.Target = v
		}
	}
}

// Temperatures returns a copy of the current tool0/tool1/bed readings.
func (s *State) Temperatures() (tool0, tool1, bed TempReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool0, s.tool1, s.bed
}

// elapsed returns the job's elapsed time, subtracting accumulated pause
// duration and freezing while Paused, per spec.md §4.D.
func (s *State) elapsedLocked() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	var end time.Time
	if s.phase == Paused {
		end = s.pauseStart
	} else {
		end = time.Now()
	}
	elapsed := end.Sub(s.startTime) - s.accumPause
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}

// completionLocked prefers elapsed/estimated when a slicer estimate is
// known, else bytes-read/size, else zero.
func (s *State) completionLocked() float64 {
	if s.estimatedSecs > 0 {
		return 100.0 * s.elapsedLocked().Seconds() / float64(s.estimatedSecs)
	}
	if s.printSize > 0 {
		return 100.0 * float64(s.printedBytes) / float64(s.printSize)
	}
	return 0
}

// JobDocument renders the /api/job document.
func (s *State) JobDocument() JobDoc {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := s.fileName
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}

	return JobDoc{
		State:       s.phase.octoprintText(),
		FileName:    name,
		PrintTime:   s.elapsedLocked().Seconds(),
		Completion:  s.completionLocked(),
	}
}

// JobDoc mirrors the shape of PrinterState::jobJSON's output.
type JobDoc struct {
	State      string
	FileName   string
	PrintTime  float64
	Completion float64
}

// PrinterDocument renders the /api/printer document.
func (s *State) PrinterDocument() PrinterDoc {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := s.phase.octoprintText()
	printingOrStalled := s.phase == Printing || s.phase == Stalled

	return PrinterDoc{
		StateText: text,
		Operational: true,
		Paused:      s.phase == Paused,
		Printing:    printingOrStalled,
		Ready:       true,
		Tool0:       s.tool0,
		Tool1:       s.tool1,
		Bed:         s.bed,
	}
}

// PrinterDoc mirrors the shape of PrinterState::toJSON's output.
type PrinterDoc struct {
	StateText   string
	Operational bool
	Paused      bool
	Printing    bool
	Ready       bool
	Tool0       TempReading
	Tool1       TempReading
	Bed         TempReading
}
