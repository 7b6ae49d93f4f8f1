// Interpreter API joins the smart meter's Route-B network, polls the current
// power draw and broadcasts the readings.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/broute_smart_meter/pkg/broadcast"
	"github.com/NotCoffee418/broute_smart_meter/pkg/config"
	"github.com/NotCoffee418/broute_smart_meter/pkg/logging"
	"github.com/NotCoffee418/broute_smart_meter/pkg/metrics"
	"github.com/NotCoffee418/broute_smart_meter/pkg/pathing"
	"github.com/NotCoffee418/broute_smart_meter/pkg/poller"
	"github.com/NotCoffee418/broute_smart_meter/pkg/port_reader"
	"github.com/NotCoffee418/broute_smart_meter/pkg/wisun"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := &cli.App{
		Name:  "interpreter_api",
		Usage: "read a Route-B smart meter and serve its live power draw",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   pathing.GetInterpreterAPIConfigPath(),
				Usage:   "path to the TOML config, created with defaults when missing",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "overrides log_level from the config",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadInterpreterAPIConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load interpreter API config: %w", err)
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", c.String("config"), err)
	}
	log := logging.New(cfg.LogLevel)

	resolver, err := wisun.ResolverByName(cfg.AddressResolution)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionCfg := cfg.SessionConfig()
	session, err := port_reader.Open(sessionCfg.Device, sessionCfg.Baudrate, log)
	if err != nil {
		return err
	}
	defer session.Close()

	controller := wisun.NewController(session, sessionCfg, resolver, log)
	if err := controller.Connect(); err != nil {
		return fmt.Errorf("failed to join the smart meter network: %w", err)
	}

	// Sinks
	hub := broadcast.NewHub(log)
	promSink := metrics.NewPrometheusSink()
	sinks := metrics.Fanout{promSink, hub}
	if cfg.StatsdAddress != "" {
		statsdSink, client, err := metrics.NewStatsdSink(cfg.StatsdAddress, log)
		if err != nil {
			return fmt.Errorf("statsd %s: %w", cfg.StatsdAddress, err)
		}
		defer client.Close()
		sinks = append(sinks, statsdSink)
	}

	p := poller.New(controller, poller.Config{Interval: sessionCfg.PollInterval}, log)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           newRouter(hub, promSink, controller),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Starting Route-B Smart Meter Interpreter API on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return pollLoop(gctx, p, sinks, log)
	})

	return g.Wait()
}

func pollLoop(ctx context.Context, p *poller.Poller, sink metrics.Sink, log logrus.FieldLogger) error {
	for watt := range p.Readings(ctx) {
		log.WithField("watt", watt).Infof("%d W", watt)
		sink.RecordPower(watt)
	}
	if err := p.Err(); err != nil {
		return fmt.Errorf("polling stopped: %w", err)
	}
	log.Info("Shutdown requested, polling stopped")
	return nil
}

func newRouter(hub *broadcast.Hub, promSink *metrics.PrometheusSink, controller *wisun.Controller) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pan := controller.PanInfo()
		response := map[string]string{
			"message": "Route-B Smart Meter API",
			"status":  "running",
			"state":   controller.State().String(),
			"channel": pan.Channel,
			"panId":   pan.PanID,
			"peer":    controller.PeerAddress(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})
	mux.HandleFunc("/latest", hub.ServeLatest)
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.Handle("/metrics", promSink.Handler())

	return mux
}
