// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/tomtom215/sessiond/internal/engine"
	"github.com/tomtom215/sessiond/internal/session"
	"github.com/tomtom215/sessiond/internal/websocket"
)

func TestRouter_EnvelopeForUnknownRoutes(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})

	if code := errorCode(t, f.do(t, http.MethodGet, "/api/v2/anything", nil, nil), http.StatusNotFound); code != "NOT_FOUND" {
		t.Errorf("code = %q", code)
	}
	if code := errorCode(t, f.do(t, http.MethodPut, "/api/v1/sessions", nil, nil), http.StatusMethodNotAllowed); code != "METHOD_NOT_ALLOWED" {
		t.Errorf("code = %q", code)
	}
}

func TestRouter_RequestID(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})

	rec := f.do(t, http.MethodGet, "/api/v1/health/live", nil, map[string]string{"X-Request-ID": "trace-123"})
	env := decode(t, rec, http.StatusOK, nil)
	if env.Metadata.RequestID != "trace-123" || rec.Header().Get("X-Request-ID") != "trace-123" {
		t.Errorf("request id: metadata=%q header=%q", env.Metadata.RequestID, rec.Header().Get("X-Request-ID"))
	}

	rec = f.do(t, http.MethodGet, "/api/v1/health/live", nil, nil)
	env = decode(t, rec, http.StatusOK, nil)
	if env.Metadata.RequestID == "" || env.Metadata.RequestID != rec.Header().Get("X-Request-ID") {
		t.Errorf("generated request id: metadata=%q header=%q", env.Metadata.RequestID, rec.Header().Get("X-Request-ID"))
	}
}

func TestRouter_RateLimit(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	for i := 0; i < 2; i++ {
		decode(t, f.do(t, http.MethodGet, "/api/v1/sessions", nil, nil), http.StatusOK, nil)
	}
	if code := errorCode(t, f.do(t, http.MethodGet, "/api/v1/sessions", nil, nil), http.StatusTooManyRequests); code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q", code)
	}

	// Liveness is not limited.
	for i := 0; i < 3; i++ {
		decode(t, f.do(t, http.MethodGet, "/api/v1/health/live", nil, nil), http.StatusOK, nil)
	}
}

func TestRouter_CORS(t *testing.T) {
	origin := "https://console.example.com"

	t.Run("allowed origin", func(t *testing.T) {
		f := newAPIFixture(t, ChiMiddlewareConfig{CORSAllowedOrigins: []string{origin}, CORSMaxAge: 60})
		rec := f.do(t, http.MethodOptions, "/api/v1/sessions", nil, map[string]string{
			"Origin":                        origin,
			"Access-Control-Request-Method": http.MethodPost,
		})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, origin)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		f := newAPIFixture(t, ChiMiddlewareConfig{})
		rec := f.do(t, http.MethodGet, "/api/v1/sessions", nil, map[string]string{"Origin": origin})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want none", got)
		}
	})
}

func TestRouter_Metrics(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})
	f.do(t, http.MethodGet, "/api/v1/health/live", nil, nil)

	rec := f.do(t, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `api_requests_total{endpoint="/api/v1/health/live"`) {
		t.Error("metrics output missing liveness request counter")
	}
}

func TestSessionEvents_Websocket(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	id := f.create(t, "kim", true).SessionID
	eng := f.factory.Last()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + id + "/ws"
	conn, resp, err := gws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("upgrade status = %d", resp.StatusCode)
	}
	waitUntil(t, "subscription", func() bool { return f.hub.SessionClientCount(id) == 1 })

	if err := eng.Emit(engine.Event{Type: engine.EventQR, QR: "2@pairing"}); err != nil {
		t.Fatal(err)
	}

	// Events published while the session started may still be queued.
	readUntil := func(event string) websocket.Message {
		t.Helper()
		for {
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var msg websocket.Message
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("ReadJSON waiting for %s: %v", event, err)
			}
			if msg.Type == event {
				return msg
			}
		}
	}

	msg := readUntil(session.EventQR)
	data, _ := msg.Data.(map[string]any)
	if msg.SessionID != id || data["qr"] != "2@pairing" {
		t.Fatalf("message = %+v, want qr for %s", msg, id)
	}

	decode(t, f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil, nil), http.StatusOK, nil)
	readUntil(session.EventSessionDestroyed)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !gws.IsCloseError(err, gws.CloseNormalClosure) {
		t.Errorf("after destroy: %v, want normal closure", err)
	}
}

func TestSessionEvents_UnknownSession(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})
	errorCode(t, f.do(t, http.MethodGet, "/api/v1/sessions/missing/ws", nil, nil), http.StatusNotFound)
	if f.hub.ClientCount() != 0 {
		t.Error("client registered for unknown session")
	}
}
