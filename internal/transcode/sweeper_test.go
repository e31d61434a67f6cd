// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package transcode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"

	"github.com/tomtom215/sessiond/internal/metrics"
)

// noRemoveFs fails every Remove.
type noRemoveFs struct {
	afero.Fs
}

func (noRemoveFs) Remove(string) error {
	return errors.New("read-only volume")
}

func TestCache_Sweep(t *testing.T) {
	f := newCacheFixture(t, func(c *Config) { c.TTL = time.Hour })
	ctx := context.Background()

	if _, err := f.cache.Convert(ctx, []byte("old"), "audio/mpeg", "old"); err != nil {
		t.Fatal(err)
	}
	f.advance(90 * time.Minute)
	if _, err := f.cache.Convert(ctx, []byte("new"), "audio/mpeg", "new"); err != nil {
		t.Fatal(err)
	}

	removed, err := f.cache.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if ok, _ := afero.Exists(f.fs, f.cache.ArtifactPath("old")); ok {
		t.Error("expired artifact not deleted")
	}
	if _, ok, _ := f.cache.Lookup("old"); ok {
		t.Error("expired entry not deleted")
	}
	if _, ok, _ := f.cache.Lookup("new"); !ok {
		t.Error("fresh entry deleted")
	}
	if n, _ := f.cache.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
	if got := testutil.ToFloat64(metrics.TranscodeCacheEntries); got != 1 {
		t.Errorf("entries gauge = %v, want 1", got)
	}
}

func TestCache_SweepDropsEntryWhenFileDeleteFails(t *testing.T) {
	mem := afero.NewMemMapFs()
	conv := &fakeConverter{fs: mem}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c, err := New(Config{CacheDir: "/cache", TTL: time.Minute}, newTestDB(t), conv, WithFs(mem), WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Convert(context.Background(), []byte("a"), "audio/mpeg", "k"); err != nil {
		t.Fatal(err)
	}

	c.fs = noRemoveFs{Fs: mem}
	now = now.Add(time.Hour)

	removed, err := c.Sweep(context.Background())
	if err != nil || removed != 1 {
		t.Fatalf("Sweep() = %d, %v; want 1, nil", removed, err)
	}
	if _, ok, _ := c.Lookup("k"); ok {
		t.Error("entry kept after file deletion failure")
	}
}

func TestCache_SweepHonorsContext(t *testing.T) {
	f := newCacheFixture(t, func(c *Config) { c.TTL = time.Minute })
	if _, err := f.cache.Convert(context.Background(), []byte("a"), "audio/mpeg", "k"); err != nil {
		t.Fatal(err)
	}
	f.advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.cache.Sweep(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Sweep() error = %v, want context.Canceled", err)
	}
}

func TestSweeper_Serve(t *testing.T) {
	f := newCacheFixture(t, func(c *Config) { c.TTL = time.Minute })
	if _, err := f.cache.Convert(context.Background(), []byte("a"), "audio/mpeg", "k"); err != nil {
		t.Fatal(err)
	}
	f.advance(time.Hour)

	s := NewSweeper(f.cache, time.Hour)
	if s.String() != "transcode-sweeper" {
		t.Errorf("String() = %q", s.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok, _ := f.cache.Lookup("k"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("startup sweep did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}
