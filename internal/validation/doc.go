// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

// Package validation validates API request structs with go-playground/validator v10.
//
// A single validator instance is built on first use. Field names in errors
// come from the json tag, so messages refer to the names clients send.
//
// Custom tags:
//   - userkey: a caller-supplied user key accepted by identity.Normalize
//   - mediatype: a parseable MIME media type such as "audio/mpeg; rate=44100"
//
// Failures convert to an APIError with code VALIDATION_ERROR:
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	    return
//	}
package validation
