// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package transcode

import (
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/tomtom215/sessiond/internal/logging"
)

// WellKnownPaths are checked after the bundled path, the executable's
// bin directory, and PATH.
var WellKnownPaths = []string{
	"/usr/bin/ffmpeg",
	"/usr/local/bin/ffmpeg",
	"/opt/homebrew/bin/ffmpeg",
	"/opt/local/bin/ffmpeg",
	"/snap/bin/ffmpeg",
}

// Detector finds the ffmpeg binary. The search runs once; later calls
// return the first result.
type Detector struct {
	// BundledPath is checked first when set.
	BundledPath string

	fs         afero.Fs
	lookPath   func(string) (string, error)
	executable func() (string, error)
	candidates []string

	once  sync.Once
	path  string
	found bool
}

// NewDetector creates a Detector that searches the real filesystem.
func NewDetector(bundledPath string) *Detector {
	return &Detector{
		BundledPath: bundledPath,
		fs:          afero.NewOsFs(),
		lookPath:    exec.LookPath,
		executable:  os.Executable,
		candidates:  WellKnownPaths,
	}
}

// Find returns the ffmpeg path and whether one was found.
func (d *Detector) Find() (string, bool) {
	d.once.Do(func() {
		d.path, d.found = d.search()
		if d.found {
			logging.Info().Str("component", "transcode").Str("path", d.path).Msg("Found ffmpeg")
		} else {
			logging.Warn().Str("component", "transcode").Msg("ffmpeg not found, voice conversion disabled")
		}
	})
	return d.path, d.found
}

func (d *Detector) search() (string, bool) {
	if d.BundledPath != "" && d.usable(d.BundledPath) {
		return d.BundledPath, true
	}
	if d.executable != nil {
		if exe, err := d.executable(); err == nil {
			p := filepath.Join(filepath.Dir(exe), "bin", "ffmpeg")
			if d.usable(p) {
				return p, true
			}
		}
	}
	if d.lookPath != nil {
		if p, err := d.lookPath("ffmpeg"); err == nil {
			return p, true
		}
	}
	for _, p := range d.candidates {
		if d.usable(p) {
			return p, true
		}
	}
	return "", false
}

func (d *Detector) usable(path string) bool {
	info, err := d.fs.Stat(path)
	return err == nil && !info.IsDir()
}
