// Package mcpclient connects to the wrapped upstream MCP server over stdio.
package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// process manages the upstream MCP server subprocess and its pipes.
type process struct {
	command string
	args    []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func newProcess(command string, args ...string) *process {
	return &process{
		command: command,
		args:    args,
	}
}

// start launches the upstream server as a subprocess and returns its stdin
// (for sending) and stdout (for receiving). The server's stderr is forwarded
// to os.Stderr (MCP allows server logging there).
func (p *process) start(ctx context.Context) (io.WriteCloser, io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return nil, nil, errors.New("upstream already started")
	}

	p.cmd = exec.CommandContext(ctx, p.command, p.args...)

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		p.cmd = nil
		return nil, nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	p.stdin = stdin

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		p.cmd = nil
		return nil, nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	p.stdout = stdout

	p.cmd.Stderr = os.Stderr

	if err := p.cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		p.cmd = nil
		return nil, nil, fmt.Errorf("failed to start upstream: %w", err)
	}

	return stdin, stdout, nil
}

// close terminates the subprocess and cleans up its pipes. Safe to call
// multiple times.
func (p *process) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error

	// Close stdin first to signal EOF to the server
	if p.stdin != nil {
		if err := p.stdin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stdin: %w", err))
		}
		p.stdin = nil
	}

	if p.cmd != nil && p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil {
			if !errors.Is(err, os.ErrProcessDone) {
				errs = append(errs, fmt.Errorf("kill upstream: %w", err))
			}
		}
		// Reap the process; the kill shows up here and is expected.
		_ = p.cmd.Wait()
	}
	p.cmd = nil

	if p.stdout != nil {
		if err := p.stdout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stdout: %w", err))
		}
		p.stdout = nil
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
