package proc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultStopTimeout is how long Stop waits between SIGTERM and SIGKILL.
const DefaultStopTimeout = 5 * time.Second

// Child is a supervised child process whose stdin/stdout are exposed as a
// single io.ReadWriteCloser for line-oriented protocols. Exactly one reader
// may own the stdout side.
type Child struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	log    *zap.Logger

	stopTimeout time.Duration
	exited      chan struct{}
	exitErr     error
}

// ChildOption configures a Child before it is started.
type ChildOption func(*Child)

// WithStopTimeout overrides the SIGTERM grace period.
func WithStopTimeout(d time.Duration) ChildOption {
	return func(c *Child) { c.stopTimeout = d }
}

// WithChildLogger sets the structured logger for supervision events.
func WithChildLogger(log *zap.Logger) ChildOption {
	return func(c *Child) { c.log = log }
}

// WithStderr routes the child's stderr to w instead of discarding it.
func WithStderr(w io.Writer) ChildOption {
	return func(c *Child) { c.cmd.Stderr = w }
}

// Start spawns program with args, wiring pipes to its stdin and stdout.
func Start(program string, args []string, opts ...ChildOption) (*Child, error) {
	c := &Child{
		cmd:         exec.Command(program, args...),
		log:         zap.NewNop(),
		stopTimeout: DefaultStopTimeout,
		exited:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	stdin, err := c.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("proc: stdin pipe: %w", err)
	}
	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("proc: stdout pipe: %w", err)
	}
	c.stdin = stdin
	c.stdout = stdout

	if err := c.cmd.Start(); err != nil {
		return nil, fmt.Errorf("proc: start %s: %w", program, err)
	}
	go func() {
		c.exitErr = c.cmd.Wait()
		close(c.exited)
	}()

	c.log.Debug("child started", zap.String("program", program), zap.Int("pid", c.cmd.Process.Pid))
	return c, nil
}

// Pid reports the child's process id.
func (c *Child) Pid() int { return c.cmd.Process.Pid }

// Stdio returns the child's stdin/stdout bundled as one stream: reads come
// from the child's stdout, writes go to its stdin, Close closes both pipes.
func (c *Child) Stdio() io.ReadWriteCloser {
	return &stdioPipe{r: c.stdout, w: c.stdin}
}

// Stop half-closes stdin, asks the child to terminate, and escalates to
// SIGKILL when it ignores the request past the grace period. The process is
// always reaped before Stop returns.
func (c *Child) Stop() error {
	// Closing stdin first gives well-behaved line servers their EOF exit.
	_ = c.stdin.Close()

	select {
	case <-c.exited:
		return ignoreExitErr(c.exitErr)
	case <-time.After(100 * time.Millisecond):
	}

	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		c.log.Warn("SIGTERM failed", zap.Error(err))
	}

	select {
	case <-c.exited:
		return ignoreExitErr(c.exitErr)
	case <-time.After(c.stopTimeout):
		c.log.Warn("child ignored SIGTERM, killing", zap.Int("pid", c.cmd.Process.Pid))
		if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("proc: kill: %w", err)
		}
		<-c.exited
		return ignoreExitErr(c.exitErr)
	}
}

// Wait blocks until the child exits on its own.
func (c *Child) Wait() error {
	<-c.exited
	return ignoreExitErr(c.exitErr)
}

// Exit statuses and termination signals are expected outcomes of Stop, not
// supervision failures.
func ignoreExitErr(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

type stdioPipe struct {
	r io.ReadCloser
	w io.WriteCloser
}

func (s *stdioPipe) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s *stdioPipe) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *stdioPipe) Close() error {
	werr := s.w.Close()
	rerr := s.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
