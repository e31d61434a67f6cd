// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// EventType identifies a conversion event.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventEnd      EventType = "end"
	EventError    EventType = "error"
)

// Event reports conversion progress. The stream ends with exactly one end
// or error event.
type Event struct {
	Type EventType

	// Processed is the media time converted so far.
	Processed time.Duration

	Err error
}

// Params are the encoder settings for a conversion.
type Params struct {
	Codec      string
	Bitrate    string
	SampleRate int
	Channels   int
}

// DefaultParams returns voice note settings: Opus, 64 kbit/s, 48 kHz mono.
func DefaultParams() Params {
	return Params{
		Codec:      "libopus",
		Bitrate:    "64k",
		SampleRate: 48000,
		Channels:   1,
	}
}

// Converter converts the file at in to Ogg at out.
type Converter interface {
	Convert(ctx context.Context, in, out string, p Params) <-chan Event
}

// FFmpeg runs an ffmpeg binary. The process is killed when ctx ends.
type FFmpeg struct {
	Path string

	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewFFmpeg creates a converter for the binary at path.
func NewFFmpeg(path string) *FFmpeg {
	return &FFmpeg{Path: path, command: exec.CommandContext}
}

// Args returns the ffmpeg arguments for one conversion.
func (f *FFmpeg) Args(in, out string, p Params) []string {
	return []string{
		"-hide_banner", "-nostdin", "-nostats", "-y",
		"-i", in,
		"-vn",
		"-c:a", p.Codec,
		"-b:a", p.Bitrate,
		"-ar", strconv.Itoa(p.SampleRate),
		"-ac", strconv.Itoa(p.Channels),
		"-progress", "pipe:1",
		"-f", "ogg",
		out,
	}
}

// Convert implements Converter.
func (f *FFmpeg) Convert(ctx context.Context, in, out string, p Params) <-chan Event {
	events := make(chan Event, 16)
	go f.run(ctx, in, out, p, events)
	return events
}

func (f *FFmpeg) run(ctx context.Context, in, out string, p Params, events chan<- Event) {
	defer close(events)

	command := f.command
	if command == nil {
		command = exec.CommandContext
	}
	cmd := command(ctx, f.Path, f.Args(in, out, p)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		events <- Event{Type: EventError, Err: fmt.Errorf("stdout pipe: %w", err)}
		return
	}
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		events <- Event{Type: EventError, Err: fmt.Errorf("start ffmpeg: %w", err)}
		return
	}
	events <- Event{Type: EventStart}

	readProgress(stdout, events)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else if msg := stderr.String(); msg != "" {
			err = fmt.Errorf("%w: %s", err, lastLine(msg))
		}
		events <- Event{Type: EventError, Err: fmt.Errorf("ffmpeg: %w", err)}
		return
	}
	events <- Event{Type: EventEnd}
}

// readProgress turns ffmpeg -progress blocks into progress events.
func readProgress(r io.Reader, events chan<- Event) {
	var processed time.Duration
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// ffmpeg reports both in microseconds.
			if us, err := strconv.ParseInt(value, 10, 64); err == nil {
				processed = time.Duration(us) * time.Microsecond
			}
		case "progress":
			select {
			case events <- Event{Type: EventProgress, Processed: processed}:
			default:
			}
		}
	}
}

// Run drains the events of one conversion and returns its outcome.
func Run(ctx context.Context, c Converter, in, out string, p Params) error {
	var result error = errors.New("conversion ended without result")
	for ev := range c.Convert(ctx, in, out, p) {
		switch ev.Type {
		case EventEnd:
			result = nil
		case EventError:
			result = ev.Err
		}
	}
	return result
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
