// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer names a group of services that restart together.
type Layer string

const (
	// LayerData holds session housekeeping and storage maintenance.
	LayerData Layer = "data"
	// LayerMessaging holds the notice hub and the embedded NATS server.
	LayerMessaging Layer = "messaging"
	// LayerAPI holds the HTTP server.
	LayerAPI Layer = "api"
)

// Layers lists the layers in start order.
var Layers = []Layer{LayerData, LayerMessaging, LayerAPI}

// TreeConfig tunes restart behavior. Zero fields take the defaults.
type TreeConfig struct {
	FailureThreshold float64       // failures before backoff, default 5
	FailureDecay     float64       // seconds for a failure to decay, default 30
	FailureBackoff   time.Duration // default 15s
	ShutdownTimeout  time.Duration // per service, default 10s
}

// DefaultTreeConfig returns the defaults used for zero fields.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	def := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = def.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = def.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	return c
}

func (c TreeConfig) supervisorSpec() suture.Spec {
	return suture.Spec{
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// SupervisorTree is the process supervisor of the capture server: a root
// named "rodada" with one child supervisor per Layer.
type SupervisorTree struct {
	root   *suture.Supervisor
	layers map[Layer]*suture.Supervisor
	config TreeConfig

	mu     sync.Mutex
	layout map[Layer][]string
}

// NewSupervisorTree creates the tree. Supervision events go to logger.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if logger == nil {
		return nil, fmt.Errorf("supervisor tree needs a logger")
	}
	config = config.withDefaults()

	// MustHook has a pointer receiver; child supervisors inherit the hook.
	hook := &sutureslog.Handler{Logger: logger}
	rootSpec := config.supervisorSpec()
	rootSpec.EventHook = hook.MustHook()

	t := &SupervisorTree{
		root:   suture.New("rodada", rootSpec),
		layers: make(map[Layer]*suture.Supervisor, len(Layers)),
		config: config,
		layout: make(map[Layer][]string, len(Layers)),
	}
	for _, l := range Layers {
		sup := suture.New(string(l)+"-layer", config.supervisorSpec())
		t.layers[l] = sup
		t.root.Add(sup)
	}
	return t, nil
}

// Add supervises svc in layer.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) (suture.ServiceToken, error) {
	sup, ok := t.layers[layer]
	if !ok {
		return suture.ServiceToken{}, fmt.Errorf("unknown supervisor layer %q", layer)
	}
	t.mu.Lock()
	t.layout[layer] = append(t.layout[layer], fmt.Sprint(svc))
	t.mu.Unlock()
	return sup.Add(svc), nil
}

// Layout returns the service names added to each layer, in order.
func (t *SupervisorTree) Layout() map[Layer][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Layer][]string, len(t.layout))
	for l, names := range t.layout {
		out[l] = append([]string(nil), names...)
	}
	return out
}

// ServeBackground runs the tree until ctx ends. The channel receives the
// result once the tree stopped.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
