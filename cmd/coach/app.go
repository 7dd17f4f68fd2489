package main

import (
	"fmt"

	"github.com/danielpatrickdp/adaptive-coach/internal/audit"
	"github.com/danielpatrickdp/adaptive-coach/internal/config"
	"github.com/danielpatrickdp/adaptive-coach/internal/harm"
	"github.com/danielpatrickdp/adaptive-coach/internal/lifecycle"
	"github.com/danielpatrickdp/adaptive-coach/internal/notify"
	"github.com/danielpatrickdp/adaptive-coach/internal/refine"
	"github.com/danielpatrickdp/adaptive-coach/internal/store"
)

// app bundles the wired core for the CLI commands.
type app struct {
	cfg     config.Config
	store   *store.Store
	sink    *audit.Sink
	monitor *harm.Monitor
	manager *lifecycle.Manager
	refiner refine.Refiner
}

// openApp loads config and wires the store, audit sink, harm monitor,
// lifecycle manager and refiner. The harm monitor doubles as the
// lifecycle's gate.
func openApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sink := audit.NewSink(st.DB())
	notifier := notify.LogNotifier{}
	monitor := harm.NewMonitor(st, sink, notifier)
	manager := lifecycle.NewManager(st, sink, notifier, monitor)

	var refiner refine.Refiner = refine.StaticRefiner{}
	if cfg.Refine.APIKey != "" || cfg.Refine.Endpoint != "" {
		refiner = refine.NewHTTPRefiner(refine.ClientConfig{
			Endpoint: cfg.Refine.Endpoint,
			APIKey:   cfg.Refine.APIKey,
			Model:    cfg.Refine.Model,
			Timeout:  cfg.Refine.Timeout(),
		})
	}

	return &app{
		cfg:     cfg,
		store:   st,
		sink:    sink,
		monitor: monitor,
		manager: manager,
		refiner: refiner,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
