// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/vcs/process"
)

// Response is the canned result of one scripted invocation
type Response struct {
	// Output is streamed line by line; a trailing newline does not add a line
	Output   string
	ExitCode int
	Stderr   string
	// Err, when set, is returned instead of running the consumer
	Err error
}

var _ process.Runner = (*ScriptedRunner)(nil)

// ScriptedRunner is a process.Runner that replays canned output keyed by the exact
// argument list. It is safe for concurrent use and records every call.
type ScriptedRunner struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     [][]string
}

// NewScriptedRunner creates an empty script
func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{responses: make(map[string]Response)}
}

// On registers the response for args
func (s *ScriptedRunner) On(resp Response, args ...string) *ScriptedRunner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[key(args)] = resp
	return s
}

// OnOutput registers a successful invocation printing output
func (s *ScriptedRunner) OnOutput(output string, args ...string) *ScriptedRunner {
	return s.On(Response{Output: output}, args...)
}

// Run replays the scripted response. Unknown argument lists fail as a
// process error so unexpected invocations surface in tests.
func (s *ScriptedRunner) Run(ctx context.Context, out process.Consumer, args ...string) error {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), args...))
	resp, ok := s.responses[key(args)]
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if !ok {
		return errors.ProcessErrorf(fmt.Errorf("unexpected command"), "git %s", strings.Join(args, " "))
	}
	if resp.Err != nil {
		return resp.Err
	}
	if out == nil {
		out = process.Discard
	}

	if resp.Output != "" {
		lines := strings.Split(strings.TrimSuffix(resp.Output, "\n"), "\n")
		var consumeErr error
		for _, line := range lines {
			if consumeErr == nil {
				consumeErr = out.Consume(strings.TrimRight(line, "\r"))
			}
		}
		if resp.ExitCode == 0 && consumeErr != nil {
			return consumeErr
		}
	}

	if resp.ExitCode != 0 {
		return errors.ProcessErrorf(&process.ExitError{Args: args, Code: resp.ExitCode, Stderr: resp.Stderr}, "git %s failed", firstArg(args))
	}
	return nil
}

// Calls returns a copy of every argument list seen so far
func (s *ScriptedRunner) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times args was invoked
func (s *ScriptedRunner) CallCount(args ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(args)
	n := 0
	for _, c := range s.calls {
		if key(c) == k {
			n++
		}
	}
	return n
}

func key(args []string) string {
	return strings.Join(args, "\x00")
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
