package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os/exec"
	"strings"
	"time"

	"github.com/thealah/rest-windows-service-health-facade/internal/logging"
)

var log = logging.L("executor")

// MaxStderrSize caps how much of a command's error stream is retained.
const MaxStderrSize = 1024 * 1024 // 1MB

// Runner spawns an enumeration command. consume receives the command's
// standard output as a lazy sequence of lines in arrival order; the sequence
// is finite and can be ranged over only once. Run returns after the process
// exits. A *CommandError reports that the command wrote to its error stream
// or could not be started.
type Runner interface {
	Run(ctx context.Context, name string, args []string, consume func(lines iter.Seq[string])) error
}

// CommandError carries the raw diagnostic of a failed enumeration command.
// Stderr is meant for server-side logs only.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command %s wrote to stderr: %s", e.Command, strings.TrimSpace(e.Stderr))
}

func (e *CommandError) Unwrap() error { return e.Err }

// IsCommandError reports whether err is or wraps a *CommandError.
func IsCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

// Executor runs commands as child processes, one process per call.
type Executor struct {
	decode  Decoder
	timeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithEncoding decodes command output from the named code page.
// Unknown names fall back to UTF-8.
func WithEncoding(name string) Option {
	return func(e *Executor) {
		if d, ok := lookupDecoder(name); ok {
			e.decode = d
		}
	}
}

// WithTimeout bounds each command. Zero leaves commands unbounded.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.timeout = d
	}
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{decode: passthrough}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run spawns name with the exact argument vector args (no shell). Success is
// decided only by whether anything was written to stderr by the time the
// process exits; the exit code is ignored.
func (e *Executor) Run(ctx context.Context, name string, args []string, consume func(lines iter.Seq[string])) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }

	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: MaxStderrSize}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &CommandError{Command: name, Err: err}
	}

	if err := cmd.Start(); err != nil {
		log.Error("command failed to start", logging.KeyCommand, name, logging.KeyError, err)
		return &CommandError{Command: name, Err: err}
	}

	out := e.decode(stdout)
	consume(Lines(out))
	// Unread output would block the child on a full pipe.
	_, _ = io.Copy(io.Discard, out)

	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn("command cancelled", logging.KeyCommand, name, logging.KeyError, ctxErr)
		return ctxErr
	}

	if stderr.Len() > 0 {
		diag := decodeString(e.decode, stderr.Bytes())
		log.Error("command reported an error",
			logging.KeyCommand, name,
			"args", args,
			"stderr", diag,
			logging.KeyDurationMs, time.Since(start).Milliseconds(),
		)
		return &CommandError{Command: name, Stderr: diag}
	}

	if waitErr != nil {
		log.Debug("command exited with error but wrote nothing to stderr",
			logging.KeyCommand, name, logging.KeyError, waitErr)
	}
	log.Debug("command completed", logging.KeyCommand, name, logging.KeyDurationMs, time.Since(start).Milliseconds())
	return nil
}

// limitedWriter wraps a buffer with a size limit
type limitedWriter struct {
	buf     *bytes.Buffer
	limit   int
	written int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	if w.written >= w.limit {
		// Discard additional data but don't error
		return total, nil
	}

	remaining := w.limit - w.written
	if len(p) > remaining {
		p = p[:remaining]
	}

	n, err := w.buf.Write(p)
	w.written += n
	return total, err // full length, so io.Copy does not see a short write
}
