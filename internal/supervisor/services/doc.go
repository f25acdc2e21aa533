// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Package services adapts the server's long-running components to
// suture.Service. Each wrapper depends on a small interface, not on the
// concrete component, so tests use fakes and no import cycles arise.
package services
