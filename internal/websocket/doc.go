// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

/*
Package websocket delivers session events to subscribers over WebSocket.

A Hub keeps one subscriber set per session id. It implements
relay.Publisher, so the session manager publishes straight into it (or,
with NATS enabled, a relay.Bridge does). Each published event becomes a
Message sent to every client subscribed to that session:

	{"type":"qr","session_id":"0190...","data":{"qr":"..."},"timestamp":"..."}

Clients connect through Hub.ServeWS, which upgrades the request with
gorilla/websocket and subscribes the connection to one session. Each client
runs a read pump (pings, close detection) and a write pump (event delivery,
keepalive pings). A client whose send buffer is full is dropped rather than
allowed to stall delivery to others.

The hub loop gives shutdown priority over client registration, and
registration priority over delivery, so a client registered before an event
is published always receives it. Events named in NewHub's terminal list
close that session's subscribers after delivery.

The hub runs as a suture service via RunWithContext.
*/
package websocket
