// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/rodada/rodada/internal/config"
	"github.com/rodada/rodada/internal/models"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStores(t *testing.T) {
	t.Parallel()

	stores := map[string]Store{
		"badger": NewBadgerMirror(openDB(t), time.Hour),
		"memory": NewMemoryMirror(),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := SessionKey("ana")
			if key != "event-form:ana" {
				t.Fatalf("SessionKey() = %q", key)
			}

			got, err := s.Get(ctx, key)
			if err != nil || got != nil {
				t.Fatalf("Get(absent) = %+v, %v; want nil, nil", got, err)
			}

			id := models.DraftID(42)
			dist := 12.35
			in := Entry{
				Payload: models.FormSnapshot{
					Name:        "Vuelta al Dique",
					AddressText: "Plaza San Martín",
					Coordinates: &models.Coordinates{Lat: -31.4135, Lng: -64.1811},
					DistanceKm:  &dist,
				},
				RemoteID:  &id,
				Waypoints: []models.Coordinates{{Lat: -31.4135, Lng: -64.1811}, {Lat: -31.428, Lng: -64.185}},
				SavedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			}
			if err := s.Set(ctx, key, in); err != nil {
				t.Fatal(err)
			}

			got, err = s.Get(ctx, key)
			if err != nil || got == nil {
				t.Fatalf("Get() = %v, %v", got, err)
			}
			if got.Payload.Name != in.Payload.Name || *got.RemoteID != 42 || len(got.Waypoints) != 2 ||
				*got.Payload.DistanceKm != dist || !got.SavedAt.Equal(in.SavedAt) {
				t.Errorf("Get() = %+v", got)
			}

			keys, _ := s.Keys(ctx)
			if len(keys) != 1 || keys[0] != key {
				t.Errorf("Keys() = %v", keys)
			}

			if err := s.Clear(ctx, key); err != nil {
				t.Fatal(err)
			}
			if got, _ := s.Get(ctx, key); got != nil {
				t.Errorf("entry survived Clear: %+v", got)
			}
		})
	}
}

func TestMemoryMirror_Isolation(t *testing.T) {
	t.Parallel()

	m := NewMemoryMirror()
	ctx := context.Background()
	coords := &models.Coordinates{Lat: 1, Lng: 2}
	_ = m.Set(ctx, "k", Entry{Payload: models.FormSnapshot{Coordinates: coords}})
	coords.Lat = 99

	got, _ := m.Get(ctx, "k")
	if got.Payload.Coordinates.Lat != 1 {
		t.Errorf("stored entry aliases caller memory")
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	if _, err := Open(config.MirrorConfig{Backend: "memory"}, nil); err != nil {
		t.Error(err)
	}
	if _, err := Open(config.MirrorConfig{Backend: "badger"}, nil); err == nil {
		t.Error("badger without db should fail")
	}
	if _, err := Open(config.MirrorConfig{Backend: "redis"}, nil); err == nil {
		t.Error("unknown backend should fail")
	}
}
