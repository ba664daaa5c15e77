package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	logx "voxchat/pkg/logger"

	"voxchat/internal/domain"
	"voxchat/internal/ports"
)

// Recorder turns a capture session into a single WAV payload.
type Recorder struct {
	capture   ports.AudioCapture
	cfg       ports.AudioConfig
	chunkSize int
}

func NewRecorder(capture ports.AudioCapture, cfg ports.AudioConfig, chunkSize int) *Recorder {
	if chunkSize < 256 {
		chunkSize = 4096
	}
	return &Recorder{capture: capture, cfg: withCaptureDefaults(cfg), chunkSize: chunkSize}
}

// Start acquires the microphone. Failures wrap domain.ErrDevice.
func (r *Recorder) Start(ctx context.Context) (ports.Recording, error) {
	session, err := r.capture.Start(ctx, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDevice, err)
	}

	rec := &recording{
		session: session,
		cfg:     r.cfg,
		done:    make(chan struct{}),
	}
	go rec.pump(r.chunkSize)
	return rec, nil
}

type recording struct {
	session ports.AudioSession
	cfg     ports.AudioConfig
	done    chan struct{}

	mu      sync.Mutex
	chunks  int
	buf     bytes.Buffer
	readErr error

	stopOnce sync.Once
	stopErr  error
}

func (r *recording) pump(chunkSize int) {
	defer close(r.done)

	buf := make([]byte, chunkSize)
	for {
		n, err := r.session.Read(buf)
		if n > 0 {
			r.mu.Lock()
			r.chunks++
			r.buf.Write(buf[:n])
			r.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				r.mu.Lock()
				r.readErr = err
				r.mu.Unlock()
			}
			return
		}
	}
}

// release stops the device exactly once and waits for the pump to drain.
func (r *recording) release() error {
	r.stopOnce.Do(func() {
		r.stopErr = r.session.Stop()
		<-r.done
	})
	return r.stopErr
}

func (r *recording) Stop() ([]byte, error) {
	if err := r.release(); err != nil {
		logx.Warn().Err(err).Msg("audio capture did not stop cleanly")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.readErr != nil {
		logx.Warn().Err(r.readErr).Int("bytes", r.buf.Len()).Msg("audio capture read error")
	}
	if r.chunks == 0 || r.buf.Len() == 0 {
		return nil, domain.ErrEmptyRecording
	}
	return encodeWAV(r.buf.Bytes(), r.cfg.SampleRate, r.cfg.Channels), nil
}

func (r *recording) Abort() {
	_ = r.release()
	r.mu.Lock()
	r.buf.Reset()
	r.chunks = 0
	r.mu.Unlock()
}
