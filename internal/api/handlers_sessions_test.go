// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package api

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/tomtom215/sessiond/internal/engine"
	"github.com/tomtom215/sessiond/internal/engine/enginetest"
	"github.com/tomtom215/sessiond/internal/identity"
	"github.com/tomtom215/sessiond/internal/models"
	"github.com/tomtom215/sessiond/internal/session"
)

func TestCreateSession_Supersedes(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})

	first := f.create(t, "tenant-a:alice", false)
	second := f.create(t, "tenant-a:alice", false)

	if first.SessionID == second.SessionID {
		t.Fatal("second create returned the same session id")
	}
	if second.UserID != "tenant-a:alice" || second.Started {
		t.Errorf("response = %+v", second)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/sessions/"+first.SessionID, nil, nil)
	if code := errorCode(t, rec, http.StatusConflict); code != models.CodeSessionSuperseded {
		t.Errorf("old session code = %q, want %s", code, models.CodeSessionSuperseded)
	}

	var snap session.Snapshot
	decode(t, f.do(t, http.MethodGet, "/api/v1/sessions/"+second.SessionID, nil, nil), http.StatusOK, &snap)
	if snap.ID != second.SessionID || snap.State != session.StateCreated {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestCreateSession_DeviceInfoKey(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})

	info := map[string]any{"platform": "android", "model": "Pixel 9", "build": map[string]any{"sdk": 35}}
	want, err := identity.UserKey(info)
	if err != nil {
		t.Fatal(err)
	}

	body := []byte(`{"device_info":{"build":{"sdk":35},"model":"Pixel 9","platform":"android"}}`)
	var resp models.CreateSessionResponse
	decode(t, f.do(t, http.MethodPost, "/api/v1/sessions", body, nil), http.StatusCreated, &resp)
	if resp.UserID != want {
		t.Errorf("user key = %q, want %q", resp.UserID, want)
	}
}

func TestCreateSession_BadRequests(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty body", "", http.StatusBadRequest, models.CodeValidation},
		{"malformed json", `{"user_id":`, http.StatusBadRequest, models.CodeValidation},
		{"no identity", `{}`, http.StatusBadRequest, models.CodeValidation},
		{"empty device info", `{"device_info":{}}`, http.StatusBadRequest, models.CodeValidation},
		{"path in user key", `{"user_id":"../../etc"}`, http.StatusBadRequest, models.CodeValidation},
		{"oversized", `{"user_id":"` + strings.Repeat("a", maxJSONBody) + `"}`, http.StatusRequestEntityTooLarge, models.CodePayloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/sessions", []byte(tt.body), nil)
			if code := errorCode(t, rec, tt.status); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
	if n := len(f.manager.List()); n != 0 {
		t.Errorf("%d sessions created by bad requests", n)
	}
}

func TestCreateSession_Start(t *testing.T) {
	t.Run("starts engine", func(t *testing.T) {
		f := newAPIFixture(t, ChiMiddlewareConfig{})
		resp := f.create(t, "bob", true)
		if !resp.Started {
			t.Error("Started = false")
		}
		if f.factory.Count() != 1 {
			t.Errorf("engines = %d, want 1", f.factory.Count())
		}
	})

	t.Run("engine not configured", func(t *testing.T) {
		f := newAPIFixture(t, ChiMiddlewareConfig{})
		f.factory.FailNew(engine.ErrNotConfigured)

		rec := f.do(t, http.MethodPost, "/api/v1/sessions", []byte(`{"user_id":"bob","start":true}`), nil)
		env := decode(t, rec, http.StatusServiceUnavailable, nil)
		if env.Error.Code != models.CodeServiceUnavailable {
			t.Errorf("code = %q", env.Error.Code)
		}
		if id, _ := env.Error.Details["session_id"].(string); id == "" {
			t.Error("error details missing session_id")
		}
	})
}

func TestStartSession(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})
	id := f.create(t, "carol", false).SessionID

	for i := 0; i < 2; i++ {
		var snap session.Snapshot
		decode(t, f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/start", nil, nil), http.StatusOK, &snap)
		if !snap.HasEngine || snap.State != session.StateInitializing {
			t.Errorf("start %d: snapshot = %+v", i, snap)
		}
	}
	if f.factory.Count() != 1 {
		t.Errorf("engines = %d, want 1 after repeated starts", f.factory.Count())
	}

	t.Run("start failure", func(t *testing.T) {
		f := newAPIFixture(t, ChiMiddlewareConfig{})
		f.factory.Prepare = func(e *enginetest.Engine) { e.FailStart(errors.New("browser crashed")) }
		id := f.create(t, "dave", false).SessionID

		rec := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/start", nil, nil)
		if code := errorCode(t, rec, http.StatusBadGateway); code != models.CodeEngineStartFailed {
			t.Errorf("code = %q", code)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/v1/sessions/nope/start", nil, nil)
		if code := errorCode(t, rec, http.StatusNotFound); code != models.CodeSessionNotFound {
			t.Errorf("code = %q", code)
		}
	})
}

func TestDestroySession(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})
	id := f.create(t, "erin", true).SessionID
	eng := f.factory.Last()

	decode(t, f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil, nil), http.StatusOK, nil)
	if !eng.Destroyed() {
		t.Error("engine not destroyed")
	}
	errorCode(t, f.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil, nil), http.StatusNotFound)

	// Idempotent.
	decode(t, f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil, nil), http.StatusOK, nil)
	decode(t, f.do(t, http.MethodDelete, "/api/v1/sessions/never-existed", nil, nil), http.StatusOK, nil)
}

func TestReconnectSession(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})
	id := f.create(t, "frank", true).SessionID

	var snap session.Snapshot
	decode(t, f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/reconnect?wait=true", nil, nil), http.StatusOK, &snap)
	if f.factory.Count() != 2 || !snap.HasEngine || snap.Reconnecting {
		t.Errorf("after sync reconnect: engines=%d snapshot=%+v", f.factory.Count(), snap)
	}

	decode(t, f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/reconnect", nil, nil), http.StatusAccepted, nil)
	waitUntil(t, "background reconnect", func() bool { return f.factory.Count() == 3 })

	errorCode(t, f.do(t, http.MethodPost, "/api/v1/sessions/missing/reconnect", nil, nil), http.StatusNotFound)

	t.Run("in progress", func(t *testing.T) {
		f := newAPIFixture(t, ChiMiddlewareConfig{})
		id := f.create(t, "gina", true).SessionID

		blocked := make(chan *enginetest.Engine, 1)
		f.factory.Prepare = func(e *enginetest.Engine) {
			e.BlockStart()
			select {
			case blocked <- e:
			default:
			}
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/reconnect?wait=true", nil, nil)
		}()
		eng := <-blocked

		rec := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/reconnect?wait=true", nil, nil)
		if code := errorCode(t, rec, http.StatusConflict); code != models.CodeReconnectActive {
			t.Errorf("code = %q, want %s", code, models.CodeReconnectActive)
		}
		eng.Release()
		<-done
	})
}

func TestSessionHealth(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})
	id := f.create(t, "hank", true).SessionID

	var health models.SessionHealthResponse
	decode(t, f.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/health", nil, nil), http.StatusOK, &health)
	if health.Healthy {
		t.Error("healthy before ready")
	}

	if err := f.factory.Last().Emit(engine.Event{Type: engine.EventReady, Phone: "+15550100"}); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "ready", func() bool {
		snap, err := f.manager.Snapshot(id)
		return err == nil && snap.IsReady
	})

	decode(t, f.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/health", nil, nil), http.StatusOK, &health)
	if !health.Healthy || health.SessionID != id {
		t.Errorf("health = %+v, want healthy", health)
	}

	errorCode(t, f.do(t, http.MethodGet, "/api/v1/sessions/missing/health", nil, nil), http.StatusNotFound)
}

func TestListSessionsAndLiveness(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})
	f.create(t, "ivy", false)
	f.create(t, "jack", false)

	var list []session.Snapshot
	decode(t, f.do(t, http.MethodGet, "/api/v1/sessions", nil, nil), http.StatusOK, &list)
	if len(list) != 2 {
		t.Errorf("listed %d sessions, want 2", len(list))
	}

	var live models.LivenessResponse
	decode(t, f.do(t, http.MethodGet, "/api/v1/health/live", nil, nil), http.StatusOK, &live)
	if live.Status != "alive" || live.Sessions != 2 {
		t.Errorf("liveness = %+v", live)
	}
}
