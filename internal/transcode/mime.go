// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package transcode

import (
	"mime"
	"strings"
)

// Output formats offered to callers.
const (
	FormatOriginal = "original"
	FormatOgg      = "ogg"
)

// OggOpusMIME is the content type of converted artifacts.
const OggOpusMIME = "audio/ogg; codecs=opus"

// convertible lists the content types worth converting to Ogg/Opus.
var convertible = map[string]struct{}{
	"audio/mpeg":   {},
	"audio/mp3":    {},
	"audio/mp4":    {},
	"audio/aac":    {},
	"audio/x-m4a":  {},
	"audio/m4a":    {},
	"audio/wav":    {},
	"audio/x-wav":  {},
	"audio/wave":   {},
	"audio/webm":   {},
	"audio/flac":   {},
	"audio/x-flac": {},
	"audio/3gpp":   {},
	"audio/amr":    {},
}

// NormalizeMIME lowercases a content type and strips its parameters.
func NormalizeMIME(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// NeedsConversion reports whether content of this type should be converted.
func NeedsConversion(contentType string) bool {
	_, ok := convertible[NormalizeMIME(contentType)]
	return ok
}

// SupportedFormats lists the formats contentType can be delivered in.
// The original is always offered; ogg only when an engine is available.
func SupportedFormats(contentType string, engineAvailable bool) []string {
	if engineAvailable && NeedsConversion(contentType) {
		return []string{FormatOriginal, FormatOgg}
	}
	return []string{FormatOriginal}
}
