// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package transcode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sessiond/internal/logging"
	"github.com/tomtom215/sessiond/internal/metrics"
)

// Sweep removes every entry older than the TTL along with its artifact.
// Entries whose file cannot be deleted are dropped anyway.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	var stale []Entry
	remaining := 0

	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(indexPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var entry Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				// Unreadable entries are dropped with no file to remove.
				stale = append(stale, Entry{Key: strings.TrimPrefix(string(item.KeyCopy(nil)), indexPrefix)})
				continue
			}
			if c.expired(entry) {
				stale = append(stale, entry)
				continue
			}
			remaining++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan transcode index: %w", err)
	}

	removed := 0
	for _, entry := range stale {
		if err := ctx.Err(); err != nil {
			metrics.RecordTranscodeSweep(removed, remaining+len(stale)-removed)
			return removed, err
		}
		if entry.Path != "" {
			if err := c.fs.Remove(entry.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				c.logger.Warn().Err(err).Str("key", entry.Key).Str("path", entry.Path).Msg("Failed to delete expired artifact")
			}
		}
		if err := c.deleteEntry(entry.Key); err != nil {
			c.logger.Warn().Err(err).Str("key", entry.Key).Msg("Failed to delete expired index entry")
			remaining++
			continue
		}
		removed++
	}

	metrics.RecordTranscodeSweep(removed, remaining)
	return removed, nil
}

// Sweeper runs Sweep on an interval. It implements suture.Service.
type Sweeper struct {
	cache    *Cache
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper creates a Sweeper. A non-positive interval defaults to ten minutes.
func NewSweeper(c *Cache, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		cache:    c,
		interval: interval,
		logger:   logging.WithComponent("transcode-sweeper"),
	}
}

// Serve sweeps once at startup and then every interval until ctx is canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.cache.Sweep(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Msg("Transcode sweep failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int("removed", n).Msg("Expired transcode artifacts removed")
	}
}

// String implements fmt.Stringer for suture logging.
func (s *Sweeper) String() string {
	return "transcode-sweeper"
}
