// Package executortest provides a scripted executor.Runner for tests that
// must not spawn real processes.
package executortest

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/thealah/rest-windows-service-health-facade/internal/executor"
)

// Call records one Run invocation.
type Call struct {
	Name string
	Args []string
}

// Runner replays fixed output. When Stderr is non-empty Run returns a
// *executor.CommandError after the output has been consumed, the same way a
// real command that writes to both streams behaves. Err, when set, is
// returned instead of running anything.
type Runner struct {
	Stdout string
	Stderr string
	Err    error

	mu    sync.Mutex
	calls []Call
}

func (r *Runner) Run(ctx context.Context, name string, args []string, consume func(lines iter.Seq[string])) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Name: name, Args: append([]string(nil), args...)})
	r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	consume(executor.Lines(strings.NewReader(r.Stdout)))

	if r.Stderr != "" {
		return &executor.CommandError{Command: name, Stderr: r.Stderr}
	}
	return nil
}

// Calls returns a copy of the recorded invocations.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}
