package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/habridge/habridge"
	"github.com/habridge/habridge/config"
	"github.com/habridge/habridge/endpoint"
	"github.com/habridge/habridge/hass"
	"github.com/habridge/habridge/rules"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"github.com/shimmeringbee/persistence/impl/memory"
)

func main() {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfgPath := ""
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	filter := rules.NewEngine(cfg.Filter.DefaultAccept)
	if err := filter.LoadRules(cfg.Filter.Rules); err != nil {
		logger.Fatalf("filter rules: %v", err)
	}

	mode := endpoint.ModeBridged
	if cfg.Bridge.Mode == "standalone" {
		mode = endpoint.ModeStandalone
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lw := logwrap.New(golog.Wrap(logger))

	var bridge *habridge.Bridge

	client := hass.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, func(ev hass.StateEvent) {
		bridge.HandleStateEvent(ev)
	}, lw)

	bridge = habridge.New(habridge.Settings{
		Name:            cfg.Bridge.Name,
		Mode:            mode,
		VendorName:      cfg.Bridge.VendorName,
		VendorID:        cfg.Bridge.VendorID,
		ProductName:     cfg.Bridge.ProductName,
		ProductID:       cfg.Bridge.ProductID,
		SoftwareVersion: cfg.Bridge.SoftwareVersion,
	}, memory.New(), client, filter)
	bridge.WithLogWrapLogger(lw)

	if err := client.Connect(ctx); err != nil {
		logger.Fatalf("connecting: %v", err)
	}
	defer client.Close()

	go func() {
		if err := client.Run(ctx); err != nil {
			logger.Printf("event stream: %v", err)
		}
		cancel()
	}()

	if err := client.SubscribeStateChanges(ctx); err != nil {
		logger.Fatalf("subscribing: %v", err)
	}

	entities, err := client.ListEntities(ctx)
	if err != nil {
		logger.Fatalf("listing entities: %v", err)
	}

	if err := bridge.ComposeAll(ctx, entities); err != nil {
		logger.Fatalf("composing devices: %v", err)
	}

	logger.Printf("bridge %s running, %d devices composed", cfg.Bridge.Name, len(bridge.Registry().Devices()))

	<-ctx.Done()
	_ = bridge.Stop()
}
