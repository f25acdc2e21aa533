// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

/*
Package lifecycle publishes draft and event lifecycle announcements through
Watermill.

Two transports are supported:

  - gochannel: in-process, the default. Local consumers subscribe through
    Publisher.Subscriber.
  - nats: core NATS subjects via watermill-nats, with reconnect handling.
    An EmbeddedServer can host NATS in the same process.

Topics:

	rodada.drafts.saved      models.DraftSaved
	rodada.events.submitted  models.EventSubmitted

Payloads are JSON. Message ids are random UUIDs; session_id and owner travel
as metadata. Announcements are best effort: the capture engine never waits
on or reports a failed publish.
*/
package lifecycle
