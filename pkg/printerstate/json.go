package printerstate

import "encoding/json"

// MarshalJSON renders the exact Octoprint /api/job document shape from
// PrinterState::jobJSON: {"state","job":{"file":{"name"}},
// "progress":{"printTime","printTimeLeft","completion"}}.
func (j JobDoc) MarshalJSON() ([]byte, error) {
	type file struct {
		Name string `json:"name"`
	}
	type job struct {
		File file `json:"file"`
	}
	type progress struct {
		PrintTime     float64  `json:"printTime"`
		PrintTimeLeft *float64 `json:"printTimeLeft"`
		Completion    float64  `json:"completion"`
	}
	return json.Marshal(struct {
		State    string   `json:"state"`
		Job      job      `json:"job"`
		Progress progress `json:"progress"`
	}{
		State: j.State,
		Job:   job{File: file{Name: j.FileName}},
		Progress: progress{
			PrintTime:     j.PrintTime,
			PrintTimeLeft: nil,
			Completion:    j.Completion,
		},
	})
}

// MarshalJSON renders the exact Octoprint /api/printer document shape
// from PrinterState::toJSON.
func (p PrinterDoc) MarshalJSON() ([]byte, error) {
	type flags struct {
		Operational   bool `json:"operational"`
		Paused        bool `json:"paused"`
		Printing      bool `json:"printing"`
		Cancelling    bool `json:"cancelling"`
		Pausing       bool `json:"pausing"`
		SDReady       bool `json:"sdReady"`
		Error         bool `json:"error"`
		Ready         bool `json:"ready"`
		ClosedOrError bool `json:"closedOrError"`
	}
	type state struct {
		Text  string `json:"text"`
		Flags flags  `json:"flags"`
	}
	type sd struct {
		Ready bool `json:"ready"`
	}
	type temp struct {
		Actual float64 `json:"actual"`
		Target float64 `json:"target"`
		Offset float64 `json:"offset"`
	}
	type temperature struct {
		Tool0 temp `json:"tool0"`
		Tool1 temp `json:"tool1"`
		Bed   temp `json:"bed"`
	}
	return json.Marshal(struct {
		SD          sd          `json:"sd"`
		State       state       `json:"state"`
		Temperature temperature `json:"temperature"`
	}{
		SD: sd{Ready: false},
		State: state{
			Text: p.StateText,
			Flags: flags{
				Operational:   p.Operational,
				Paused:        p.Paused,
				Printing:      p.Printing,
				Cancelling:    false,
				Pausing:       false,
				SDReady:       false,
				Error:         false,
				Ready:         p.Ready,
				ClosedOrError: false,
			},
		},
		Temperature: temperature{
			Tool0: temp{Actual: p.Tool0.Actual, Target: p.Tool0.Target},
			Tool1: temp{Actual: p.Tool1.Actual, Target: p.Tool1.Target},
			Bed:   temp{Actual: p.Bed.Actual, Target: p.Bed.Target},
		},
	})
}
