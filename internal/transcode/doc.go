// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

/*
Package transcode converts outbound voice media to Ogg/Opus and caches the
results.

Conversions are keyed by a caller-supplied key. Entries live in a badger
index under the "transcode:" prefix; the converted bytes live on an afero
filesystem under the cache directory, one file per key named by the SHA-256
of the key. Concurrent misses for the same key share one conversion.

An external ffmpeg binary performs the work. It is discovered once per
process. When it cannot be found, Convert returns ErrEngineUnavailable and
SupportedFormats offers only the original format.

Entries older than the TTL are removed by Sweep, which the Sweeper service
runs on an interval under the supervisor tree.
*/
package transcode
