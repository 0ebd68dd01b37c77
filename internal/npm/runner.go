// ABOUTME: Runs npm commands as tracked background tasks or in a pseudo-terminal
// ABOUTME: Every task closes Done() on exit and is published on the runner's Finished bus

package npm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/creack/pty"
	"github.com/mariosdrth/npm-explorer/internal/config"
	"github.com/mariosdrth/npm-explorer/internal/eventbus"
	"github.com/mariosdrth/npm-explorer/internal/log"
)

// ErrNoScript is returned when a script name is not declared in the manifest.
var ErrNoScript = errors.New("script not found")

// Task is one running or finished npm command.
type Task struct {
	ID      int64
	Command Command

	done chan struct{}
	err  error

	mu  sync.Mutex
	out bytes.Buffer
}

// Name is the command line shown to users.
func (t *Task) Name() string { return t.Command.String() }

// Done is closed when the process has exited.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the exit error. Only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is cancelled.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Output returns everything the command printed so far.
func (t *Task) Output() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.String()
}

func (t *Task) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.Write(p)
}

// Runner starts npm commands in the configured mode.
type Runner struct {
	// Mode is config.RunModeTask or config.RunModeTerminal.
	Mode string
	// Output receives terminal-mode output as it is produced. May be nil.
	Output io.Writer
	// Finished is published once per task after Done is closed.
	Finished *eventbus.Bus[*Task]

	nextID atomic.Int64
}

// NewRunner creates a runner for mode.
func NewRunner(mode string, output io.Writer) *Runner {
	return &Runner{Mode: mode, Output: output, Finished: eventbus.New[*Task]()}
}

// Start launches cmd and returns immediately.
func (r *Runner) Start(ctx context.Context, cmd Command) (*Task, error) {
	t := &Task{ID: r.nextID.Add(1), Command: cmd, done: make(chan struct{})}
	log.Debug("npm: starting %q in %s mode", cmd.String(), r.Mode)

	var err error
	if r.Mode == config.RunModeTerminal {
		err = r.startTerminal(ctx, t)
	} else {
		err = r.startTask(ctx, t)
	}
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", cmd, err)
	}
	return t, nil
}

// Run starts cmd and waits for it.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Task, error) {
	t, err := r.Start(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return t, t.Wait(ctx)
}

func (r *Runner) startTask(ctx context.Context, t *Task) error {
	c := t.Command.Exec(ctx)
	c.Stdout = t
	c.Stderr = t
	if err := c.Start(); err != nil {
		return err
	}
	go func() {
		r.finish(t, c.Wait())
	}()
	return nil
}

// startTerminal runs the command on a pty so npm keeps its colors and
// progress output.
func (r *Runner) startTerminal(ctx context.Context, t *Task) error {
	c := t.Command.Exec(ctx)
	ptmx, err := pty.Start(c)
	if err != nil {
		return err
	}

	var w io.Writer = t
	if r.Output != nil {
		w = io.MultiWriter(t, r.Output)
	}
	copied := make(chan struct{})
	go func() {
		defer close(copied)
		// Reading the master returns EIO once the child side closes.
		_, _ = io.Copy(w, ptmx)
	}()
	go func() {
		err := c.Wait()
		<-copied
		ptmx.Close()
		r.finish(t, err)
	}()
	return nil
}

func (r *Runner) finish(t *Task, err error) {
	if err != nil {
		log.Debug("npm: %q finished: %v", t.Name(), err)
	}
	t.err = err
	close(t.done)
	if r.Finished != nil {
		r.Finished.Publish(t)
	}
}
