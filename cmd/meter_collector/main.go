// Responsible for storing the data collected from the smart meter
// Depends on the interpreter API being online.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/broute_smart_meter/pkg/aggregator"
	"github.com/NotCoffee418/broute_smart_meter/pkg/config"
	"github.com/NotCoffee418/broute_smart_meter/pkg/interpreter"
	"github.com/NotCoffee418/broute_smart_meter/pkg/logging"
	"github.com/NotCoffee418/broute_smart_meter/pkg/meterdb"
	"github.com/NotCoffee418/broute_smart_meter/pkg/pathing"
	"github.com/NotCoffee418/broute_smart_meter/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "meter_collector",
		Usage: "store live readings from the interpreter API and aggregate them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   pathing.GetMeterCollectorConfigPath(),
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
	cfg, err := config.LoadMeterCollectorConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load meter collector config: %w", err)
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel)

	if err := pathing.EnsureDirs(); err != nil {
		return err
	}

	// Initialize database
	store, err := meterdb.Open(pathing.GetMeterDbPath())
	if err != nil {
		return err
	}
	defer store.Close()
	store.Migrate()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runAggregator(ctx, store, log)

	// Subscribe to websocket with revive
	interpreter.StartListener(
		ctx,
		interpreter.WebSocketURL(cfg.InterpreterAPIHost, cfg.TLSEnabled),
		log,
		func(reading *types.PowerReading) {
			handleMeterReading(store, reading, log)
		},
	)
	if ctx.Err() == nil {
		return fmt.Errorf("interpreter API at %s unreachable", cfg.InterpreterAPIHost)
	}
	return nil
}

// Handle meter reading data
func handleMeterReading(store *meterdb.Store, reading *types.PowerReading, log logrus.FieldLogger) {
	ts, err := reading.Time()
	if err != nil {
		log.WithError(err).Warn("Skipping reading with bad timestamp")
		return
	}
	if err := store.InsertLivePowerReading(meterdb.LivePowerReadingFromNet(reading.Watt, ts.Unix())); err != nil {
		log.WithError(err).Error("Failed to store reading")
	}
}

// runAggregator aggregates shortly after every full hour.
func runAggregator(ctx context.Context, store *meterdb.Store, log logrus.FieldLogger) {
	for {
		now := time.Now()
		next := now.Truncate(time.Hour).Add(time.Hour + time.Minute)
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}
		if err := aggregator.AggregateAndCleanup(store, time.Now(), log); err != nil {
			log.WithError(err).Error("Aggregation failed")
		}
	}
}
