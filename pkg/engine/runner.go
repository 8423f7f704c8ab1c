package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/crxforge/crxforge/pkg/config"
	"github.com/crxforge/crxforge/pkg/logging"
	"github.com/crxforge/crxforge/pkg/types"
	"github.com/crxforge/crxforge/pkg/workspace"
)

// Stream identifies which pipe an output line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// OutputEvent is one line of CLI output, emitted in arrival order.
type OutputEvent struct {
	Stream Stream
	Line   string
}

// EmitFunc receives output events as the process produces them. The runner
// serializes calls across both streams, so implementations need not be safe
// for concurrent use.
type EmitFunc func(OutputEvent)

// Status summarizes the outcome of a generation run.
type Status string

const (
	// StatusSucceededWithFiles means the CLI exited cleanly and the
	// workspace holds generated files beyond the seeded icons.
	StatusSucceededWithFiles Status = "succeeded_with_files"

	// StatusSucceededNoFiles means the CLI exited cleanly but produced
	// nothing beyond the seeded icons.
	StatusSucceededNoFiles Status = "succeeded_no_files"

	// StatusFailed means the CLI could not be started, exited non-zero, was
	// canceled, or timed out.
	StatusFailed Status = "failed"
)

// stderrTailLines bounds the diagnostic kept from a failed run.
const stderrTailLines = 10

// Result is the outcome of one generation run. Files is the post-run
// workspace snapshot and is only populated for successful runs.
type Result struct {
	Status     Status
	Files      types.FileMap
	ExitCode   int
	Duration   time.Duration
	Diagnostic string
}

// HasGeneratedFiles reports whether the snapshot holds anything beyond the
// seeded template icons.
func (r *Result) HasGeneratedFiles() bool {
	for path := range r.Files {
		if !workspace.IsTemplateIcon(path) {
			return true
		}
	}
	return false
}

// Runner invokes the configured generation CLI.
type Runner struct {
	cfg    config.EngineConfig
	logger *logging.Logger
}

// NewRunner creates a runner for the given CLI configuration.
func NewRunner(cfg config.EngineConfig) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: logging.ForComponent("engine"),
	}
}

// Generate runs the CLI in the session workspace with the given prompt,
// streaming each output line through emit. The process is killed if ctx is
// canceled or the configured timeout elapses. On clean exit the workspace is
// snapshotted to produce the result file set.
func (r *Runner) Generate(ctx context.Context, ws *workspace.Handle, prompt string, emit EmitFunc) (*Result, error) {
	if emit == nil {
		emit = func(OutputEvent) {}
	}
	// Both pipe readers call emit; one mutex keeps the calls serial.
	var emitMu sync.Mutex
	inner := emit
	emit = func(ev OutputEvent) {
		emitMu.Lock()
		defer emitMu.Unlock()
		inner(ev)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout())
	defer cancel()

	args := append(append([]string{}, r.cfg.Args...), r.cfg.PromptFlag, FlattenPrompt(prompt))
	cmd := exec.CommandContext(runCtx, r.cfg.Binary, args...)
	cmd.Dir = ws.Dir()

	r.logger.Infof("starting generation for session %s: %s %s", ws.SessionID(), r.cfg.Binary, strings.Join(r.cfg.Args, " "))

	start := time.Now()
	stderrTail, exitCode, execErr := r.runStreaming(runCtx, cmd, emit)
	duration := time.Since(start)

	if execErr != nil {
		diag := diagnosticFor(runCtx, execErr, stderrTail)
		r.logger.Warnf("generation failed for session %s after %s: %s", ws.SessionID(), duration, diag)
		return &Result{
			Status:     StatusFailed,
			ExitCode:   exitCode,
			Duration:   duration,
			Diagnostic: diag,
		}, nil
	}

	files, err := ws.Read()
	if err != nil {
		return nil, fmt.Errorf("snapshotting workspace after generation: %w", err)
	}

	result := &Result{
		Status:   StatusSucceededNoFiles,
		Files:    files,
		ExitCode: exitCode,
		Duration: duration,
	}
	if result.HasGeneratedFiles() {
		result.Status = StatusSucceededWithFiles
	}
	r.logger.Infof("generation for session %s finished in %s with %d files (%s)",
		ws.SessionID(), duration, len(files), result.Status)
	return result, nil
}

// runStreaming starts the command and pumps both pipes through emit until the
// process exits. Returns the tail of stderr for diagnostics.
func (r *Runner) runStreaming(ctx context.Context, cmd *exec.Cmd, emit EmitFunc) (stderrTail []string, exitCode int, err error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, -1, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, -1, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, -1, fmt.Errorf("starting %s: %w", cmd.Path, err)
	}

	var wg sync.WaitGroup
	var tailMu sync.Mutex
	var tail []string

	wg.Add(2)
	go func() {
		defer wg.Done()
		streamLines(stdoutPipe, StreamStdout, emit, nil, nil)
	}()
	go func() {
		defer wg.Done()
		streamLines(stderrPipe, StreamStderr, emit, &tail, &tailMu)
	}()

	// Drain both pipes before Wait so no output is lost when the process
	// exits.
	wg.Wait()
	execErr := cmd.Wait()

	if execErr != nil {
		if exitErr, ok := execErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
		return tail, exitCode, execErr
	}
	return tail, 0, nil
}

// streamLines scans a pipe line by line, emitting each line and optionally
// keeping a bounded tail.
func streamLines(pipe io.ReadCloser, stream Stream, emit EmitFunc, tail *[]string, tailMu *sync.Mutex) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		emit(OutputEvent{Stream: stream, Line: line})
		if tail != nil {
			tailMu.Lock()
			*tail = append(*tail, line)
			if len(*tail) > stderrTailLines {
				*tail = (*tail)[len(*tail)-stderrTailLines:]
			}
			tailMu.Unlock()
		}
	}
}

func diagnosticFor(ctx context.Context, execErr error, stderrTail []string) string {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return "generation timed out"
	case context.Canceled:
		return "generation was canceled"
	}
	if len(stderrTail) > 0 {
		return fmt.Sprintf("%v: %s", execErr, strings.Join(stderrTail, "\n"))
	}
	return execErr.Error()
}
