// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

/*
Package services adapts sessiond components to suture.Service.

Each wrapper translates a component's lifecycle into suture's
Serve(ctx) error contract and names the service via fmt.Stringer so
supervisor events identify it.

  - HTTPServerService runs an *http.Server and shuts it down gracefully
    when its context ends.
  - RunnerService runs anything with RunWithContext, such as the
    websocket hub.
  - ShutdownService runs nothing while the tree is up and invokes a
    cleanup function when it stops; the session manager uses it to
    destroy every session on shutdown.

Components that already implement Serve (the health monitor, the
transcode sweeper, the relay bridge) are added to the tree directly.
*/
package services
