// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

/*
Package websocket pushes capture session notices to the browser.

A Hub keeps the connected clients grouped by session id. The capture engine
calls Hub.Notify with a session lock held, so Notify only queues; the hub
goroutine does the fan-out. Each Client runs a read pump (browser pings,
disconnect detection) and a write pump (queued frames, keepalive pings).

Frames are JSON:

	{"type": "route_updated", "session_id": "...", "data": {...}}

where type is a capture.NoticeKind and data the capture.Notice, including
the session view for notices that change the form.

Clients whose buffer fills up are dropped rather than slowing delivery for
the others.
*/
package websocket
