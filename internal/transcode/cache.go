// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package transcode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/sessiond/internal/breaker"
	"github.com/tomtom215/sessiond/internal/logging"
	"github.com/tomtom215/sessiond/internal/metrics"
)

var (
	// ErrEngineUnavailable is returned when no ffmpeg binary was found.
	ErrEngineUnavailable = errors.New("transcode engine unavailable")

	// ErrCircuitOpen is returned while the engine breaker is open.
	ErrCircuitOpen = errors.New("transcode circuit open")

	// ErrConversionFailed wraps engine, timeout, and storage failures.
	ErrConversionFailed = errors.New("conversion failed")

	// ErrEmptyInput is returned for zero-length media.
	ErrEmptyInput = errors.New("empty input")
)

const indexPrefix = "transcode:"

// Config holds cache settings.
type Config struct {
	CacheDir string

	// TTL is how long a converted artifact is served from the cache.
	TTL time.Duration

	// Timeout bounds one engine run.
	Timeout time.Duration

	BreakerFailures uint32
	BreakerTimeout  time.Duration

	Params Params
}

// DefaultConfig returns the default cache settings.
func DefaultConfig() Config {
	return Config{
		CacheDir:        "/data/transcode",
		TTL:             time.Hour,
		Timeout:         60 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
		Params:          DefaultParams(),
	}
}

// Entry is one index record.
type Entry struct {
	Key           string    `json:"key"`
	Path          string    `json:"path"`
	CreatedAt     time.Time `json:"created_at"`
	OriginalSize  int64     `json:"original_size"`
	ConvertedSize int64     `json:"converted_size"`
}

// Artifact is media ready to send. Data may be shared between callers
// and must not be modified.
type Artifact struct {
	Data      []byte
	MIME      string
	Format    string
	Converted bool
	CacheHit  bool
}

// Option customizes a Cache.
type Option func(*Cache)

// WithFs replaces the filesystem holding artifacts.
func WithFs(fs afero.Fs) Option {
	return func(c *Cache) { c.fs = fs }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache converts media through a Converter and caches the results.
type Cache struct {
	cfg    Config
	db     *badger.DB
	fs     afero.Fs
	conv   Converter
	cb     *breaker.CircuitBreaker
	group  singleflight.Group
	now    func() time.Time
	logger zerolog.Logger
}

// OpenIndex opens the badger index in dir, or in memory when dir is empty.
func OpenIndex(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open transcode index: %w", err)
	}
	return db, nil
}

// New creates a Cache. A nil conv leaves conversion unavailable.
func New(cfg Config, db *badger.DB, conv Converter, opts ...Option) (*Cache, error) {
	def := DefaultConfig()
	if cfg.CacheDir == "" {
		cfg.CacheDir = def.CacheDir
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Params == (Params{}) {
		cfg.Params = def.Params
	}

	c := &Cache{
		cfg:  cfg,
		db:   db,
		fs:   afero.NewOsFs(),
		conv: conv,
		cb: breaker.New(breaker.Config{
			Name:             "transcode",
			FailureThreshold: cfg.BreakerFailures,
			Timeout:          cfg.BreakerTimeout,
		}),
		now:    time.Now,
		logger: logging.WithComponent("transcode"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.fs.MkdirAll(cfg.CacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return c, nil
}

// Available reports whether conversion can run.
func (c *Cache) Available() bool {
	return c.conv != nil
}

// SupportedFormats lists the formats contentType can be delivered in.
func (c *Cache) SupportedFormats(contentType string) []string {
	return SupportedFormats(contentType, c.Available())
}

// Convert returns buf as Ogg/Opus when contentType is convertible, and
// unchanged otherwise. An empty key is derived from the content.
func (c *Cache) Convert(ctx context.Context, buf []byte, contentType, key string) (*Artifact, error) {
	ct := NormalizeMIME(contentType)
	if !NeedsConversion(ct) {
		return &Artifact{Data: buf, MIME: ct, Format: FormatOriginal}, nil
	}
	if c.conv == nil {
		return nil, ErrEngineUnavailable
	}
	if len(buf) == 0 {
		return nil, ErrEmptyInput
	}
	if key == "" {
		key = ContentKey(buf)
	}

	if art, ok := c.cached(key); ok {
		metrics.RecordTranscodeLookup(true)
		return art, nil
	}
	metrics.RecordTranscodeLookup(false)

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		if art, ok := c.cached(key); ok {
			return art.Data, nil
		}
		return c.convert(ctx, buf, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug().Str("key", key).Msg("Joined in-flight conversion")
	}
	return &Artifact{Data: v.([]byte), MIME: OggOpusMIME, Format: FormatOgg, Converted: true}, nil
}

// ContentKey derives a cache key from media bytes.
func ContentKey(buf []byte) string {
	sum := sha256.Sum256(buf)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Lookup returns the index entry for key.
func (c *Cache) Lookup(key string) (Entry, bool, error) {
	var entry Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read index entry: %w", err)
	}
	return entry, true, nil
}

// Len returns the number of index entries.
func (c *Cache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(indexPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// ArtifactPath returns where the artifact for key is stored.
func (c *Cache) ArtifactPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.cfg.CacheDir, hex.EncodeToString(sum[:])+".ogg")
}

// cached returns a fresh artifact for key.
func (c *Cache) cached(key string) (*Artifact, bool) {
	entry, ok, err := c.Lookup(key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Transcode index lookup failed")
		return nil, false
	}
	if !ok || c.expired(entry) {
		return nil, false
	}

	data, err := afero.ReadFile(c.fs, entry.Path)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cached artifact unreadable, converting again")
		if delErr := c.deleteEntry(key); delErr != nil {
			c.logger.Warn().Err(delErr).Str("key", key).Msg("Failed to drop index entry")
		}
		return nil, false
	}
	return &Artifact{Data: data, MIME: OggOpusMIME, Format: FormatOgg, Converted: true, CacheHit: true}, true
}

func (c *Cache) expired(e Entry) bool {
	return e.CreatedAt.Before(c.now().Add(-c.cfg.TTL))
}

// convert runs the engine once for key under the breaker and the hard timeout.
func (c *Cache) convert(ctx context.Context, buf []byte, key string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
	defer cancel()

	began := time.Now()
	v, err := c.cb.Execute(func() (interface{}, error) {
		return c.transcode(runCtx, buf, key)
	})
	dur := time.Since(began)

	if err != nil {
		reason := failureReason(err)
		metrics.RecordTranscode(dur, reason)
		c.logger.Warn().Err(err).Str("key", key).Str("reason", reason).Msg("Conversion failed")
		if breaker.IsOpen(err) {
			return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	metrics.RecordTranscode(dur, "")
	data := v.([]byte)
	c.logger.Debug().
		Str("key", key).
		Int("original_size", len(buf)).
		Int("converted_size", len(data)).
		Dur("duration", dur).
		Msg("Conversion complete")
	return data, nil
}

func (c *Cache) transcode(ctx context.Context, buf []byte, key string) ([]byte, error) {
	out := c.ArtifactPath(key)
	in := out + ".src"

	if err := afero.WriteFile(c.fs, in, buf, 0o600); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}
	defer c.remove(in)

	if err := Run(ctx, c.conv, in, out, c.cfg.Params); err != nil {
		c.remove(out)
		return nil, err
	}

	data, err := afero.ReadFile(c.fs, out)
	if err != nil {
		c.remove(out)
		return nil, fmt.Errorf("read output: %w", err)
	}
	if len(data) == 0 {
		c.remove(out)
		return nil, errors.New("engine produced no output")
	}

	entry := Entry{
		Key:           key,
		Path:          out,
		CreatedAt:     c.now(),
		OriginalSize:  int64(len(buf)),
		ConvertedSize: int64(len(data)),
	}
	if err := c.putEntry(entry); err != nil {
		c.remove(out)
		return nil, err
	}
	return data, nil
}

func (c *Cache) putEntry(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal index entry: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(indexPrefix+e.Key), data); err != nil {
			return fmt.Errorf("set index entry: %w", err)
		}
		return nil
	})
}

func (c *Cache) deleteEntry(key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(indexPrefix + key))
	})
}

// remove deletes path, logging anything but a missing file.
func (c *Cache) remove(path string) {
	if err := c.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove transcode file")
	}
}

func failureReason(err error) string {
	switch {
	case breaker.IsOpen(err):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "engine"
	}
}
