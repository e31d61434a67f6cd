// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/tomtom215/sessiond/internal/models"
	"github.com/tomtom215/sessiond/internal/transcode"
)

func TestConvertMedia(t *testing.T) {
	mp3 := []byte("ID3-voice-note")
	ogg := []byte("OggS-opus")

	tests := []struct {
		name        string
		contentType string
		body        []byte
		artifact    *transcode.Artifact
		err         error
		status      int
		wantBody    []byte
		wantHeaders map[string]string
	}{
		{
			name:        "converted",
			contentType: "audio/mpeg",
			body:        mp3,
			artifact:    &transcode.Artifact{Data: ogg, MIME: transcode.OggOpusMIME, Format: transcode.FormatOgg, Converted: true},
			status:      http.StatusOK,
			wantBody:    ogg,
			wantHeaders: map[string]string{
				"Content-Type":        transcode.OggOpusMIME,
				HeaderTranscodeFormat: transcode.FormatOgg,
				HeaderTranscodeCache:  "miss",
			},
		},
		{
			name:        "cache hit",
			contentType: "audio/mpeg",
			body:        mp3,
			artifact:    &transcode.Artifact{Data: ogg, MIME: transcode.OggOpusMIME, Format: transcode.FormatOgg, Converted: true, CacheHit: true},
			status:      http.StatusOK,
			wantBody:    ogg,
			wantHeaders: map[string]string{HeaderTranscodeCache: "hit"},
		},
		{
			name:        "pass through",
			contentType: "image/png",
			body:        []byte("png"),
			status:      http.StatusOK,
			wantBody:    []byte("png"),
			wantHeaders: map[string]string{"Content-Type": "image/png", HeaderTranscodeFormat: transcode.FormatOriginal, HeaderTranscodeCache: ""},
		},
		{
			name:        "conversion failure falls back",
			contentType: "audio/wav; rate=8000",
			body:        mp3,
			err:         fmt.Errorf("%w: exit status 1", transcode.ErrConversionFailed),
			status:      http.StatusOK,
			wantBody:    mp3,
			wantHeaders: map[string]string{
				"Content-Type":          "audio/wav",
				HeaderTranscodeFallback: "true",
				HeaderTranscodeFormat:   transcode.FormatOriginal,
			},
		},
		{
			name:        "breaker open falls back",
			contentType: "audio/mpeg",
			body:        mp3,
			err:         fmt.Errorf("%w: %w", transcode.ErrCircuitOpen, transcode.ErrConversionFailed),
			status:      http.StatusOK,
			wantBody:    mp3,
			wantHeaders: map[string]string{HeaderTranscodeFallback: "true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t, ChiMiddlewareConfig{})
			f.media.artifact, f.media.err = tt.artifact, tt.err

			rec := f.do(t, http.MethodPost, "/api/v1/media/convert?key=msg-1", tt.body, map[string]string{"Content-Type": tt.contentType})
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tt.status, rec.Body.String())
			}
			if got := rec.Body.Bytes(); string(got) != string(tt.wantBody) {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
			for k, want := range tt.wantHeaders {
				if got := rec.Header().Get(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
			if len(f.media.calls) != 1 || f.media.calls[0] != tt.contentType+"|msg-1" {
				t.Errorf("converter calls = %v", f.media.calls)
			}
		})
	}
}

func TestConvertMedia_Errors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		err         error
		status      int
		code        string
	}{
		{"missing content type", "", []byte("x"), nil, http.StatusBadRequest, models.CodeValidation},
		{"malformed content type", "audio/", []byte("x"), nil, http.StatusBadRequest, models.CodeValidation},
		{"body too large", "audio/mpeg", make([]byte, 65), nil, http.StatusRequestEntityTooLarge, models.CodePayloadTooLarge},
		{"empty input", "audio/mpeg", nil, transcode.ErrEmptyInput, http.StatusBadRequest, models.CodeValidation},
		{"no engine", "audio/mpeg", []byte("x"), transcode.ErrEngineUnavailable, http.StatusUnprocessableEntity, models.CodeEngineUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t, ChiMiddlewareConfig{})
			f.media.err = tt.err
			header := map[string]string{}
			if tt.contentType != "" {
				header["Content-Type"] = tt.contentType
			}

			rec := f.do(t, http.MethodPost, "/api/v1/media/convert", tt.body, header)
			if code := errorCode(t, rec, tt.status); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
			if rec.Header().Get(HeaderTranscodeFallback) != "" {
				t.Error("fallback header set on error response")
			}
		})
	}
}

func TestMediaFormats(t *testing.T) {
	f := newAPIFixture(t, ChiMiddlewareConfig{})

	tests := []struct {
		contentType string
		available   bool
		want        []string
	}{
		{"audio/mpeg", true, []string{transcode.FormatOriginal, transcode.FormatOgg}},
		{"AUDIO/MP4; codecs=mp4a", true, []string{transcode.FormatOriginal, transcode.FormatOgg}},
		{"audio/mpeg", false, []string{transcode.FormatOriginal}},
		{"audio/ogg", true, []string{transcode.FormatOriginal}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%v", tt.contentType, tt.available), func(t *testing.T) {
			f.media.available = tt.available

			var resp models.FormatsResponse
			rec := f.do(t, http.MethodGet, "/api/v1/media/formats?content_type="+url.QueryEscape(tt.contentType), nil, nil)
			decode(t, rec, http.StatusOK, &resp)
			if fmt.Sprint(resp.Formats) != fmt.Sprint(tt.want) {
				t.Errorf("formats = %v, want %v", resp.Formats, tt.want)
			}
			if resp.EngineAvailable != tt.available {
				t.Errorf("engine_available = %v", resp.EngineAvailable)
			}
		})
	}

	errorCode(t, f.do(t, http.MethodGet, "/api/v1/media/formats", nil, nil), http.StatusBadRequest)
}
