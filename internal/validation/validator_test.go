// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package validation

import (
	"strings"
	"testing"

	"github.com/tomtom215/sessiond/internal/models"
)

type keyedRequest struct {
	UserID string `json:"user_id" validate:"omitempty,userkey"`
	Name   string `json:"name" validate:"max=4"`
	Hidden string `json:"-" validate:"omitempty,max=1"`
	Plain  int    `validate:"min=1"`
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator returned different instances")
	}
}

func TestValidateStruct_CreateSessionRequest(t *testing.T) {
	tests := []struct {
		name  string
		req   models.CreateSessionRequest
		field string
		tag   string
	}{
		{"user id only", models.CreateSessionRequest{UserID: "tenant-a:alice"}, "", ""},
		{"device info only", models.CreateSessionRequest{DeviceInfo: map[string]any{"ua": "x"}}, "", ""},
		{"neither", models.CreateSessionRequest{}, "device_info", "required_without"},
		{"path separator", models.CreateSessionRequest{UserID: "../etc"}, "user_id", "userkey"},
		{"control character", models.CreateSessionRequest{UserID: "a\x00b"}, "user_id", "userkey"},
		{"too long", models.CreateSessionRequest{UserID: strings.Repeat("k", 129)}, "user_id", "userkey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.req)
			if tt.field == "" {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected validation error")
			}
			errs := verr.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), verr)
			}
			if errs[0].Field() != tt.field || errs[0].Tag() != tt.tag {
				t.Errorf("error = %s/%s, want %s/%s", errs[0].Field(), errs[0].Tag(), tt.field, tt.tag)
			}
		})
	}
}

func TestValidateStruct_ConvertRequest(t *testing.T) {
	valid := []string{"audio/mpeg", "audio/ogg; codecs=opus", "AUDIO/WAV"}
	for _, ct := range valid {
		if verr := ValidateStruct(&models.ConvertRequest{ContentType: ct}); verr != nil {
			t.Errorf("%q rejected: %v", ct, verr)
		}
	}

	invalid := []string{"", "audio/", "not a type", "audio/mpeg; =broken"}
	for _, ct := range invalid {
		if verr := ValidateStruct(&models.ConvertRequest{ContentType: ct}); verr == nil {
			t.Errorf("%q accepted", ct)
		}
	}

	long := models.ConvertRequest{ContentType: "audio/mpeg", Key: strings.Repeat("k", 257)}
	verr := ValidateStruct(&long)
	if verr == nil || verr.Errors()[0].Param() != "256" {
		t.Errorf("oversized key: %v", verr)
	}
}

func TestValidateStruct_FieldNames(t *testing.T) {
	verr := ValidateStruct(&keyedRequest{Name: "too long", Hidden: "xx", Plain: 0})
	if verr == nil {
		t.Fatal("expected errors")
	}
	got := map[string]string{}
	for _, e := range verr.Errors() {
		got[e.Field()] = e.Error()
	}

	if msg := got["name"]; msg != "name must be at most 4 characters" {
		t.Errorf("name message = %q", msg)
	}
	if msg := got["Plain"]; msg != "Plain must be at least 1" {
		t.Errorf("Plain message = %q", msg)
	}
	if len(got) != 3 {
		t.Errorf("fields = %v, want name, Plain and the json:\"-\" field", got)
	}
}

func TestToAPIError(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		apiErr := ValidateStruct(&models.CreateSessionRequest{}).ToAPIError()
		if apiErr.Code != CodeValidation {
			t.Errorf("Code = %q", apiErr.Code)
		}
		if apiErr.Message != "device_info is required when user_id is not set" {
			t.Errorf("Message = %q", apiErr.Message)
		}
		if apiErr.Details["field"] != "device_info" {
			t.Errorf("Details = %v", apiErr.Details)
		}
	})

	t.Run("multiple", func(t *testing.T) {
		apiErr := ValidateStruct(&keyedRequest{UserID: "a/b", Name: "long name", Plain: 1}).ToAPIError()
		fields, ok := apiErr.Details["fields"].([]map[string]any)
		if !ok || len(fields) != 2 {
			t.Fatalf("Details = %v, want two fields", apiErr.Details)
		}
		if !strings.Contains(apiErr.Message, "; ") {
			t.Errorf("Message = %q, want joined messages", apiErr.Message)
		}
	})

	t.Run("empty", func(t *testing.T) {
		apiErr := (&RequestValidationError{}).ToAPIError()
		if apiErr.Code != CodeValidation || apiErr.Message != "Validation failed" {
			t.Errorf("got %+v", apiErr)
		}
	})
}

func TestSplitCamel(t *testing.T) {
	for in, want := range map[string]string{
		"UserID":     "user_id",
		"DeviceInfo": "device_info",
		"Key":        "key",
	} {
		if got := splitCamel(in); got != want {
			t.Errorf("splitCamel(%q) = %q, want %q", in, got, want)
		}
	}
}
