package workflow

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a workflow failure
type ErrorKind string

const (
	// KindConnection means the credentials were rejected or Jira is unreachable
	KindConnection ErrorKind = "connection"
	// KindDiscovery means a read of projects, statuses or fields failed
	KindDiscovery ErrorKind = "discovery"
	// KindValidation means the input must be corrected; nothing was sent
	KindValidation ErrorKind = "validation"
	// KindRemoteMutation means a create or update call failed
	KindRemoteMutation ErrorKind = "remote_mutation"
	// KindStorage means writing to the local workspace failed
	KindStorage ErrorKind = "storage"
	// KindCancelled means the context was cancelled between steps
	KindCancelled ErrorKind = "cancelled"
)

// ErrNotConnected is returned when a step runs before a successful connect
var ErrNotConnected = errors.New("not connected to Jira")

// StepError reports which step of a workflow failed and why
type StepError struct {
	Kind ErrorKind
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// stepErr wraps err unless it is nil. Context errors are always reported as
// cancellations.
func stepErr(kind ErrorKind, step string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCancelled
	}
	return &StepError{Kind: kind, Step: step, Err: err}
}

// KindOf returns the kind of a workflow error, or "" for other errors
func KindOf(err error) ErrorKind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Warning is a soft mismatch: something was skipped but the run went on
type Warning struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Step, w.Message)
}

// Progress is reported after every unit of work
type Progress struct {
	Phase   string `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// ProgressFunc receives progress updates. It is called from the goroutine
// running the workflow step.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(phase string, current, total int, message string) {
	if f != nil {
		f(Progress{Phase: phase, Current: current, Total: total, Message: message})
	}
}

// checkCancelled is called between steps; a running call is never interrupted
// by it
func checkCancelled(ctx context.Context, step string) error {
	if err := ctx.Err(); err != nil {
		return &StepError{Kind: KindCancelled, Step: step, Err: err}
	}
	return nil
}
