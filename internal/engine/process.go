// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sessiond/internal/logging"
)

const (
	defaultDestroyGrace = 5 * time.Second
	defaultEventBuffer  = 64
	maxLineBytes        = 1 << 20
)

// Bridge wire message types that are not engine events.
const (
	wireStarted = "started"
	wireState   = "state"
)

// ProcessConfig configures the bridge process launched for each session.
type ProcessConfig struct {
	Command          string
	Args             []string
	ConservativeArgs []string

	// Env is appended to the parent environment.
	Env []string

	DestroyGrace time.Duration
	EventBuffer  int
}

// ProcessFactory creates engines backed by one bridge process per session.
//
// The bridge speaks newline-delimited JSON. It writes events to stdout
// ({"type":"qr","qr":"..."}), announces readiness for commands with
// {"type":"started"}, and answers {"cmd":"state","id":N} with
// {"type":"state","id":N,"state":"CONNECTED"}. {"cmd":"destroy"} asks it to exit.
type ProcessFactory struct {
	cfg ProcessConfig
}

// NewProcessFactory creates a ProcessFactory.
func NewProcessFactory(cfg ProcessConfig) *ProcessFactory {
	if cfg.DestroyGrace <= 0 {
		cfg.DestroyGrace = defaultDestroyGrace
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	return &ProcessFactory{cfg: cfg}
}

// New returns an unstarted process engine.
func (f *ProcessFactory) New(sessionID string, opts Options) (Engine, error) {
	if f.cfg.Command == "" {
		return nil, ErrNotConfigured
	}

	args := make([]string, 0, len(f.cfg.Args)+len(f.cfg.ConservativeArgs))
	args = append(args, f.cfg.Args...)
	if opts.Conservative {
		args = append(args, f.cfg.ConservativeArgs...)
	}

	env := make([]string, 0, len(f.cfg.Env)+2)
	env = append(env, f.cfg.Env...)
	env = append(env,
		"SESSIOND_SESSION_ID="+sessionID,
		"SESSIOND_DATA_DIR="+opts.DataDir,
	)

	return &Process{
		sessionID: sessionID,
		command:   f.cfg.Command,
		args:      args,
		env:       env,
		grace:     f.cfg.DestroyGrace,
		logger:    logging.With().Str("component", "engine").Str("session_id", sessionID).Logger(),
		events:    make(chan Event, f.cfg.EventBuffer),
		started:   make(chan struct{}),
		exited:    make(chan struct{}),
		quit:      make(chan struct{}),
		pending:   make(map[uint64]chan string),
	}, nil
}

type wireCommand struct {
	Cmd string `json:"cmd"`
	ID  uint64 `json:"id,omitempty"`
}

type wireMessage struct {
	Event
	ID    uint64 `json:"id,omitempty"`
	State string `json:"state,omitempty"`
}

// Process is an Engine backed by a bridge child process.
type Process struct {
	sessionID string
	command   string
	args      []string
	env       []string
	grace     time.Duration
	logger    zerolog.Logger

	events  chan Event
	started chan struct{}
	exited  chan struct{}
	quit    chan struct{}

	startedOnce sync.Once
	destroyOnce sync.Once

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pending map[uint64]chan string
	nextID  uint64
	waitErr error
}

// Events returns the engine's event stream.
func (p *Process) Events() <-chan Event {
	return p.events
}

// Start launches the bridge and waits until it reports started.
// The process is killed if ctx expires first.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	select {
	case <-p.quit:
		p.mu.Unlock()
		return ErrExited
	default:
	}
	if p.cmd != nil {
		p.mu.Unlock()
		return errors.New("engine already started")
	}

	//nolint:gosec // command comes from operator configuration
	cmd := exec.Command(p.command, p.args...)
	cmd.Env = append(os.Environ(), p.env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("engine stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("engine stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("launch engine: %w", err)
	}
	p.cmd = cmd
	p.stdin = stdin
	p.mu.Unlock()

	p.logger.Debug().Int("pid", cmd.Process.Pid).Msg("Engine process launched")

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		p.readStdout(stdout)
	}()
	go func() {
		defer readers.Done()
		p.readStderr(stderr)
	}()
	go func() {
		readers.Wait()
		err := cmd.Wait()
		p.mu.Lock()
		p.waitErr = err
		p.mu.Unlock()
		close(p.exited)
		p.logger.Debug().Err(err).Msg("Engine process exited")
	}()

	select {
	case <-p.started:
		return nil
	case <-p.exited:
		return fmt.Errorf("%w before start completed: %v", ErrExited, p.exitErr())
	case <-ctx.Done():
		p.kill()
		return ctx.Err()
	}
}

// LivenessState asks the bridge for its connection state.
func (p *Process) LivenessState(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.cmd == nil {
		p.mu.Unlock()
		return "", ErrNotStarted
	}
	p.nextID++
	id := p.nextID
	reply := make(chan string, 1)
	p.pending[id] = reply
	err := p.sendLocked(wireCommand{Cmd: "state", ID: id})
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if err != nil {
		return "", fmt.Errorf("send state command: %w", err)
	}

	select {
	case state := <-reply:
		return state, nil
	case <-p.exited:
		return "", ErrExited
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Destroy asks the bridge to exit and kills it after the grace period.
func (p *Process) Destroy(ctx context.Context) error {
	p.destroyOnce.Do(func() {
		p.mu.Lock()
		close(p.quit)
		cmd := p.cmd
		if cmd != nil {
			if err := p.sendLocked(wireCommand{Cmd: "destroy"}); err != nil {
				p.logger.Debug().Err(err).Msg("Destroy command not delivered")
			}
			_ = p.stdin.Close()
		}
		p.mu.Unlock()

		if cmd == nil {
			close(p.events)
			return
		}

		timer := time.NewTimer(p.grace)
		defer timer.Stop()

		select {
		case <-p.exited:
			return
		case <-timer.C:
			p.logger.Warn().Dur("grace", p.grace).Msg("Engine ignored destroy, killing process")
		case <-ctx.Done():
		}
		p.kill()

		select {
		case <-p.exited:
		case <-ctx.Done():
		}
	})
	return nil
}

func (p *Process) sendLocked(cmd wireCommand) error {
	line, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = p.stdin.Write(line)
	return err
}

func (p *Process) kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

func (p *Process) exitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

func (p *Process) readStdout(r io.Reader) {
	defer close(p.events)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		var msg wireMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			p.logger.Debug().Err(err).Msg("Ignoring malformed engine line")
			continue
		}

		switch msg.Type {
		case wireStarted:
			p.startedOnce.Do(func() { close(p.started) })
		case wireState:
			p.mu.Lock()
			reply, ok := p.pending[msg.ID]
			p.mu.Unlock()
			if ok {
				select {
				case reply <- msg.State:
				default:
				}
			}
		default:
			select {
			case <-p.quit:
				// Destroyed: drain stdout without delivering.
			case p.events <- msg.Event:
			}
		}
	}
	if err := scanner.Err(); err != nil {
		p.logger.Debug().Err(err).Msg("Engine stdout closed with error")
	}
}

func (p *Process) readStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for scanner.Scan() {
		p.logger.Debug().Str("stream", "stderr").Msg(scanner.Text())
	}
}
