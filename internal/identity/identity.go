// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

// Package identity derives stable user keys from client device fingerprints.
//
// A user key selects the single current session for an end user. Equal device
// information always yields the same key, independent of map ordering.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// KeyLength is the number of hex characters in a derived user key.
const KeyLength = 32

// MaxKeyLength bounds explicitly supplied user keys.
const MaxKeyLength = 128

var (
	// ErrEmptyDeviceInfo is returned when no fingerprint fields are supplied.
	ErrEmptyDeviceInfo = errors.New("device info is empty")

	// ErrInvalidUserKey is returned when an explicit user key is unusable.
	ErrInvalidUserKey = errors.New("invalid user key")
)

// UserKey hashes the canonical JSON encoding of deviceInfo.
// Object keys are emitted in sorted order at every nesting level, so the
// result does not depend on how the caller built the map.
func UserKey(deviceInfo map[string]any) (string, error) {
	if len(deviceInfo) == 0 {
		return "", ErrEmptyDeviceInfo
	}
	canonical, err := json.Marshal(deviceInfo)
	if err != nil {
		return "", fmt.Errorf("encode device info: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:KeyLength], nil
}

// Normalize validates a caller-supplied user key.
// Path separators and control characters are rejected.
func Normalize(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	switch {
	case key == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidUserKey)
	case len(key) > MaxKeyLength:
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidUserKey, MaxKeyLength)
	case strings.ContainsAny(key, `/\`) || key == "." || key == "..":
		return "", fmt.Errorf("%w: contains path separator", ErrInvalidUserKey)
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("%w: contains control character", ErrInvalidUserKey)
		}
	}
	return key, nil
}

// Resolve returns the explicit key when present, otherwise derives one from deviceInfo.
func Resolve(explicit string, deviceInfo map[string]any) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return Normalize(explicit)
	}
	return UserKey(deviceInfo)
}
