// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Package auth identifies the owner of each API request.
//
// Tokens are HS256 JWTs signed with the shared JWT_SECRET; the owner is the
// sub claim, or username when sub is absent. With AUTH_MODE=none every
// request belongs to LocalOwner, for development only.
package auth
