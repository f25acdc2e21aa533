// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// countingService runs until canceled, failing the first fails starts.
type countingService struct {
	name   string
	fails  int32
	starts atomic.Int32
}

func (s *countingService) Serve(ctx context.Context) error {
	if n := s.starts.Add(1); n <= s.fails {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return s.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewSupervisorTreeDefaults(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.layers) != len(Layers) {
		t.Fatalf("layers = %d, want %d", len(tree.layers), len(Layers))
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults", tree.config)
	}
}

func TestSupervisorTreeRunsEveryLayer(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	data := &countingService{name: "data"}
	messaging := &countingService{name: "messaging"}
	api := &countingService{name: "api"}
	for layer, svc := range map[Layer]*countingService{LayerData: data, LayerMessaging: messaging, LayerAPI: api} {
		if _, err := tree.Add(layer, svc); err != nil {
			t.Fatal(err)
		}
	}
	layout := tree.Layout()
	for layer, want := range map[Layer]string{LayerData: "data", LayerMessaging: "messaging", LayerAPI: "api"} {
		if got := layout[layer]; len(got) != 1 || got[0] != want {
			t.Errorf("layout[%s] = %v, want [%s]", layer, got, want)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for data.starts.Load() == 0 || messaging.starts.Load() == 0 || api.starts.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("services not started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestSupervisorTreeRestartsFailedService(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	flaky := &countingService{name: "flaky", fails: 2}
	if _, err := tree.Add(LayerData, flaky); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := tree.ServeBackground(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for flaky.starts.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("starts = %d, want 3", flaky.starts.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestSupervisorTreeRejectsUnknownLayer(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tree.Add(Layer("cache"), &countingService{name: "x"}); err == nil {
		t.Error("Add accepted an unknown layer")
	}
	if len(tree.Layout()) != 0 {
		t.Errorf("layout = %v, want empty", tree.Layout())
	}
	if _, err := NewSupervisorTree(nil, TreeConfig{}); err == nil {
		t.Error("NewSupervisorTree accepted a nil logger")
	}
}
