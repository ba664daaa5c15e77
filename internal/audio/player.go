package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"voxchat/internal/ports"
)

// FFPlayPlayer plays audio payloads through ffplay, reading from stdin.
type FFPlayPlayer struct {
	command string
}

func NewFFPlayPlayer(command string) *FFPlayPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayer{command: command}
}

func (p *FFPlayPlayer) Play(ctx context.Context, audio []byte) (ports.Playback, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("nothing to play")
	}

	cmd := exec.CommandContext(ctx, p.command,
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
	)
	cmd.Stdin = bytes.NewReader(audio)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffplay: %w", err)
	}

	waitErr := make(chan error, 1)
	pb := &ffplayPlayback{process: cmd.Process, waitErr: waitErr, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		pb.setResult(err, stderr.String())
		waitErr <- err
		close(waitErr)
		close(pb.done)
	}()
	return pb, nil
}

type ffplayPlayback struct {
	process *os.Process
	waitErr chan error
	done    chan struct{}

	mu     sync.Mutex
	result error

	stopOnce sync.Once
	stopErr  error
}

func (p *ffplayPlayback) setResult(err error, stderr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err = normalizeStopErr(err); err != nil {
		if detail := trimOutput(stderr); detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
	}
	p.result = err
}

// Err reports why playback ended, once Done is closed.
func (p *ffplayPlayback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

func (p *ffplayPlayback) Done() <-chan struct{} {
	return p.done
}

func (p *ffplayPlayback) Stop() error {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		p.stopErr = stopProcess(p.process, p.waitErr, 300*time.Millisecond)
	})
	return p.stopErr
}
