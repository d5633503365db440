// Package process runs the external version-control binary and streams its
// standard output to line consumers.
package process

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/sirupsen/logrus"
)

// Consumer receives the standard output of a process one line at a time.
// Line terminators are stripped; blank lines are delivered as "".
type Consumer interface {
	Consume(line string) error
}

// ConsumerFunc adapts a function to Consumer
type ConsumerFunc func(line string) error

// Consume calls f(line)
func (f ConsumerFunc) Consume(line string) error {
	return f(line)
}

// Discard ignores all output
var Discard Consumer = ConsumerFunc(func(string) error { return nil })

// Runner executes one invocation of the version-control binary per call
type Runner interface {
	Run(ctx context.Context, out Consumer, args ...string) error
}

// ExitError reports a process that ran but exited with a non-zero status
type ExitError struct {
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("exit status %d", e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// ExitCode extracts the exit status from an error returned by a Runner
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// Stderr returns the captured standard error of a failed invocation
func Stderr(err error) string {
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Stderr
	}
	return ""
}

// Options configures an ExecRunner
type Options struct {
	// Binary is the executable name or path (default "git")
	Binary string
	// Dir is the working directory every invocation runs in
	Dir string
	// Timeout bounds a single invocation; 0 disables the deadline
	Timeout time.Duration
	// Serialize forces invocations to run one at a time
	Serialize bool
	Logger    *logrus.Logger
}

// ExecRunner runs the binary with os/exec
type ExecRunner struct {
	binary  string
	dir     string
	timeout time.Duration
	serial  *sync.Mutex
	logger  *logrus.Logger
}

// NewExecRunner validates the binary and working directory. A missing binary
// or directory is a process failure and is fatal for the run.
func NewExecRunner(opts Options) (*ExecRunner, error) {
	if opts.Binary == "" {
		opts.Binary = "git"
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	binary, err := exec.LookPath(opts.Binary)
	if err != nil {
		return nil, errors.ProcessErrorf(err, "locate %s binary", opts.Binary)
	}

	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, errors.ProcessErrorf(err, "working directory %s", opts.Dir)
	}
	if !info.IsDir() {
		return nil, errors.ProcessErrorf(fmt.Errorf("not a directory"), "working directory %s", opts.Dir)
	}

	r := &ExecRunner{
		binary:  binary,
		dir:     opts.Dir,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	if opts.Serialize {
		r.serial = &sync.Mutex{}
	}
	return r, nil
}

// Dir returns the working directory
func (r *ExecRunner) Dir() string {
	return r.dir
}

// Run executes the binary with args and streams stdout to out. Stderr is
// captured for diagnostics. If out returns an error, the remaining output is
// drained and that error is returned after the process exits.
func (r *ExecRunner) Run(ctx context.Context, out Consumer, args ...string) error {
	if r.serial != nil {
		r.serial.Lock()
		defer r.serial.Unlock()
	}
	if out == nil {
		out = Discard
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = r.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.ProcessErrorf(err, "open stdout for %s", describe(args))
	}
	if err := cmd.Start(); err != nil {
		return errors.ProcessErrorf(err, "start %s", describe(args))
	}

	consumeErr := stream(stdout, out)
	waitErr := cmd.Wait()

	r.logger.WithFields(logrus.Fields{
		"args":     strings.Join(args, " "),
		"duration": time.Since(start).String(),
	}).Debug("git invocation finished")

	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			return errors.TimeoutError(ctxErr, fmt.Sprintf("%s exceeded %s", describe(args), r.timeout))
		}
		return fmt.Errorf("%s: %w", describe(args), ctxErr)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if stderrors.As(waitErr, &exitErr) {
			return errors.ProcessErrorf(&ExitError{
				Args:   args,
				Code:   exitErr.ExitCode(),
				Stderr: strings.TrimSpace(stderr.String()),
			}, "%s failed", describe(args))
		}
		return errors.ProcessErrorf(waitErr, "%s failed", describe(args))
	}

	return consumeErr
}

// stream reads r to EOF, handing each line to out until out fails
func stream(r io.Reader, out Consumer) error {
	reader := bufio.NewReader(r)
	var consumeErr error
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 && consumeErr == nil {
			consumeErr = out.Consume(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if err != io.EOF && consumeErr == nil {
				consumeErr = err
			}
			return consumeErr
		}
	}
}

func describe(args []string) string {
	if len(args) == 0 {
		return "git"
	}
	return "git " + args[0]
}
