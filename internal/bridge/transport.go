// Package bridge is the OS-bridge pointer backend: a request/response client
// for an external OS automation helper reached over a duplex byte stream.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

// Stream is one open duplex channel to the helper.
type Stream interface {
	io.Reader
	io.Writer
	// Close ends the channel. Pending reads must return once it has.
	Close() error
}

// Transport opens Streams. The client never assumes a subprocess.
type Transport interface {
	Open(ctx context.Context) (Stream, error)
}

// ProcessTransport starts the helper and talks to it over stdin/stdout.
// Its stderr is forwarded to the logger at Debug.
type ProcessTransport struct {
	Command string
	Args    []string
	// KillAfter bounds how long Close waits for a clean exit.
	KillAfter time.Duration
	Logger    *zap.Logger
}

func (t ProcessTransport) Open(ctx context.Context) (Stream, error) {
	if t.Command == "" {
		return nil, errors.New("bridge command is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	// The process outlives the connect call, so it gets its own context.
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, t.Command, t.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	// An os.Pipe rather than StdoutPipe: Wait must not close the read end
	// while the client is still draining it.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		cancel()
		return nil, err
	}
	cmd.Stdout = stdoutW
	stderr := &zapio.Writer{Log: logger.Named("helper"), Level: zap.DebugLevel}
	cmd.Stderr = stderr

	err = cmd.Start()
	_ = stdoutW.Close()
	if err != nil {
		cancel()
		_ = stdout.Close()
		return nil, fmt.Errorf("failed to start %s: %w", t.Command, err)
	}
	logger.Debug("Bridge helper started.", zap.String("command", t.Command), zap.Int("pid", cmd.Process.Pid))

	killAfter := t.KillAfter
	if killAfter <= 0 {
		killAfter = 2 * time.Second
	}
	p := &process{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr, cancel: cancel, killAfter: killAfter, exited: make(chan struct{})}
	go p.wait()
	return p, nil
}

type process struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *os.File
	stderr    *zapio.Writer
	cancel    context.CancelFunc
	killAfter time.Duration

	exited  chan struct{}
	waitErr error
	once    sync.Once
}

func (p *process) wait() {
	p.waitErr = p.cmd.Wait()
	_ = p.stderr.Close()
	close(p.exited)
}

func (p *process) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *process) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Close closes stdin and gives the helper KillAfter to exit before killing it.
func (p *process) Close() error {
	var err error
	p.once.Do(func() {
		_ = p.stdin.Close()
		select {
		case <-p.exited:
		case <-time.After(p.killAfter):
			p.cancel()
			<-p.exited
		}
		p.cancel()
		_ = p.stdout.Close()
		var exitErr *exec.ExitError
		if p.waitErr != nil && !errors.As(p.waitErr, &exitErr) {
			err = p.waitErr
		}
	})
	return err
}
