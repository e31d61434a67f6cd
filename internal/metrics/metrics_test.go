// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSessionLifecycle(t *testing.T) {
	createdBefore := testutil.ToFloat64(SessionsCreated)
	registeredBefore := testutil.ToFloat64(SessionsRegistered)
	supersededBefore := testutil.ToFloat64(SessionsDestroyed.WithLabelValues("superseded"))

	RecordSessionCreated()
	RecordSessionCreated()
	RecordSessionDestroyed("superseded")

	if got := testutil.ToFloat64(SessionsCreated) - createdBefore; got != 2 {
		t.Errorf("created delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(SessionsRegistered) - registeredBefore; got != 1 {
		t.Errorf("registered delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(SessionsDestroyed.WithLabelValues("superseded")) - supersededBefore; got != 1 {
		t.Errorf("destroyed{superseded} delta = %v, want 1", got)
	}
}

func TestRecordEngineStart(t *testing.T) {
	tests := []struct {
		name         string
		conservative bool
		err          error
		mode, result string
	}{
		{"primary success", false, nil, "primary", "success"},
		{"primary failure", false, errors.New("boom"), "primary", "failure"},
		{"conservative success", true, nil, "conservative", "success"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := SessionStarts.WithLabelValues(tt.mode, tt.result)
			before := testutil.ToFloat64(c)
			RecordEngineStart(tt.conservative, time.Second, tt.err)
			if got := testutil.ToFloat64(c) - before; got != 1 {
				t.Errorf("delta = %v, want 1", got)
			}
		})
	}
}

func TestRecordTranscode(t *testing.T) {
	okBefore := testutil.ToFloat64(TranscodeConversions)
	timeoutBefore := testutil.ToFloat64(TranscodeFailures.WithLabelValues("timeout"))

	RecordTranscode(200*time.Millisecond, "")
	RecordTranscode(time.Minute, "timeout")

	if got := testutil.ToFloat64(TranscodeConversions) - okBefore; got != 1 {
		t.Errorf("conversions delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(TranscodeFailures.WithLabelValues("timeout")) - timeoutBefore; got != 1 {
		t.Errorf("failures{timeout} delta = %v, want 1", got)
	}
}

func TestRecordTranscodeLookupAndSweep(t *testing.T) {
	hits := testutil.ToFloat64(TranscodeCacheHits)
	misses := testutil.ToFloat64(TranscodeCacheMisses)

	RecordTranscodeLookup(true)
	RecordTranscodeLookup(false)
	RecordTranscodeLookup(false)
	RecordTranscodeSweep(3, 7)

	if got := testutil.ToFloat64(TranscodeCacheHits) - hits; got != 1 {
		t.Errorf("hits delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(TranscodeCacheMisses) - misses; got != 2 {
		t.Errorf("misses delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(TranscodeCacheEntries); got != 7 {
		t.Errorf("entries = %v, want 7", got)
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	RecordCircuitBreakerTransition("transcode", "closed", "open", 2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("transcode")); got != 2 {
		t.Errorf("state = %v, want 2", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests) - before; got != 1 {
		t.Errorf("active delta = %v, want 1", got)
	}
}
