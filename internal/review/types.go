package review

import (
	"time"

	"github.com/dshills/aireview/internal/patch"
	"github.com/dshills/aireview/internal/verdict"
)

// State is a step in the lifecycle of one check.
type State string

const (
	StatePending         State = "PENDING"
	StateContextBuilding State = "CONTEXT_BUILDING"
	StateSkipped         State = "SKIPPED"
	StateFailed          State = "FAILED"
	StateInvoking        State = "INVOKING"
	StateParsing         State = "PARSING"
	StatePass            State = "PASS"
	StateFail            State = "FAIL"
	StateFix             State = "FIX"
	StateManual          State = "MANUAL"
	StateDone            State = "DONE"
)

// Passing reports whether a terminal outcome lets the run succeed.
// SKIPPED and MANUAL are non-blocking.
func (s State) Passing() bool {
	switch s {
	case StatePass, StateSkipped, StateManual:
		return true
	}
	return false
}

func stateFor(s verdict.Status) State {
	switch s {
	case verdict.StatusPass:
		return StatePass
	case verdict.StatusFix:
		return StateFix
	case verdict.StatusManual:
		return StateManual
	default:
		return StateFail
	}
}

// Result is the outcome of one check invocation.
type Result struct {
	CheckID string `json:"check"`
	Model   string `json:"model,omitempty"`
	// State is the terminal outcome: SKIPPED, FAILED, PASS, FAIL, FIX or MANUAL.
	State State `json:"state"`
	// Trace lists every state the check passed through, ending in DONE.
	Trace   []State          `json:"-"`
	Passed  bool             `json:"passed"`
	Verdict *verdict.Verdict `json:"verdict,omitempty"`
	Err     error            `json:"-"`
	Error   string           `json:"error,omitempty"`
	Patch   *patch.Patch     `json:"patch,omitempty"`
	Cached  bool             `json:"cached,omitempty"`
	Chars   int              `json:"chars,omitempty"`
	Elapsed time.Duration    `json:"elapsedNs"`
}

func (r *Result) enter(s State) {
	r.Trace = append(r.Trace, s)
}

// Summary aggregates the results of a run.
type Summary struct {
	Results []Result `json:"results"`
	Passed  int      `json:"passed"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Manual  int      `json:"manual"`
}

// OK reports whether every check passed, was skipped, or needs manual review.
func (s Summary) OK() bool {
	return s.Failed == 0
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	switch {
	case r.State == StateSkipped:
		s.Skipped++
	case r.State == StateManual:
		s.Manual++
	case r.Passed:
		s.Passed++
	default:
		s.Failed++
	}
}
