// tune a DVB frontend and monitor its status
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dvb-tune/internal/config"
	"dvb-tune/internal/dtv"
	"dvb-tune/internal/frontend"
	"dvb-tune/internal/metrics"
	"dvb-tune/internal/session"
	"dvb-tune/internal/tuner"
)

var errUsage = errors.New("usage error")

const keyBufferSize = 10

// replaced in tests
var openFrontend = func(path string) (session.Device, error) {
	dev, err := frontend.Open(path)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

var openKeyboard = func(logger zerolog.Logger) (<-chan keyboard.KeyEvent, func()) {
	keys, err := keyboard.GetKeys(keyBufferSize)
	if err != nil {
		logger.Warn().Err(err).Msg("no keyboard, stop with an interrupt")
		return nil, func() {}
	}
	return keys, func() { keyboard.Close() }
}

type options struct {
	frequency   uint64
	adapter     uint
	frontend    uint
	system      string
	modulation  string
	inversion   string
	configFile  string
	metricsAddr string
	debug       bool

	// flags given on the command line, which override the config file
	set map[string]bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		// the flag package has already reported its own errors
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if opts.debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.StampMicro}).
		With().Timestamp().Logger()

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		logger.Error().Err(err).Str("file", opts.configFile).Msg("error reading configuration file")
		return 1
	}
	opts.apply(&cfg)

	req, err := tuner.NewRequest(opts.frequency, cfg.System, cfg.Modulation, cfg.Inversion)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := frontend.Path(cfg.Adapter, cfg.Frontend)
	var observer session.Observer
	if cfg.Metrics != "" {
		exporter := metrics.NewExporter(path)
		shutdown, err := serveMetrics(cfg.Metrics, exporter, logger)
		if err != nil {
			logger.Error().Err(err).Str("addr", cfg.Metrics).Msg("cannot serve metrics")
			return 1
		}
		defer shutdown()
		observer = exporter
	}

	keys, closeKeyboard := openKeyboard(logger)
	defer closeKeyboard()

	err = session.Run(ctx, session.Config{
		Path:           path,
		Request:        req,
		Timing:         cfg.Timing,
		StatusInterval: cfg.StatusInterval,
		QuitKey:        cfg.QuitKey,
		Open:           openFrontend,
		Keys:           keys,
		Out:            stdout,
		Log:            logger,
		Observer:       observer,
	})
	if err != nil {
		logger.Error().Err(err).Msg("tuning failed")
		return 1
	}
	return 0
}

// parseArgs accepts the frequency before, after or between the flags.
func parseArgs(args []string, stderr io.Writer) (opts options, err error) {
	fs := flag.NewFlagSet("dvb-tune", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.UintVar(&opts.adapter, "adapter", 0, "adapter number")
	fs.UintVar(&opts.frontend, "frontend", 0, "frontend number")
	fs.StringVar(&opts.system, "system", "ATSC", "delivery system")
	fs.StringVar(&opts.modulation, "modulation", "VSB_8", "modulation")
	fs.StringVar(&opts.inversion, "inversion", "AUTO", "spectral inversion")
	fs.StringVar(&opts.configFile, "conf", "", "configuration file")
	fs.StringVar(&opts.metricsAddr, "metrics", "", "serve prometheus metrics on this address (host:port)")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug")
	fs.Usage = func() { usage(fs) }

	var positional []string
	for {
		if err = fs.Parse(args); err != nil {
			return
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}

	if len(positional) != 1 {
		usage(fs)
		err = fmt.Errorf("%w: expected one frequency, got %d arguments", errUsage, len(positional))
		return
	}
	if opts.frequency, err = tuner.ParseFrequency(positional[0]); err != nil {
		err = fmt.Errorf("%w: %w", errUsage, err)
		return
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	return
}

func (opts options) apply(cfg *config.Config) {
	if opts.set["adapter"] {
		cfg.Adapter = opts.adapter
	}
	if opts.set["frontend"] {
		cfg.Frontend = opts.frontend
	}
	if opts.set["system"] {
		cfg.System = opts.system
	}
	if opts.set["modulation"] {
		cfg.Modulation = opts.modulation
	}
	if opts.set["inversion"] {
		cfg.Inversion = opts.inversion
	}
	if opts.set["metrics"] {
		cfg.Metrics = opts.metricsAddr
	}
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintf(out, "usage: %s <frequency> [options]\n\n", fs.Name())
	fs.PrintDefaults()
	fmt.Fprintln(out)
	for _, d := range []dtv.Domain{dtv.DeliverySystem, dtv.Modulation, dtv.Inversion} {
		fmt.Fprintf(out, "%s: %s\n", d, strings.Join(dtv.TableFor(d).Names(), " "))
	}
}

// serveMetrics binds addr before returning, so that a bad address is
// reported before the frontend is touched.
func serveMetrics(addr string, exporter *metrics.Exporter, logger zerolog.Logger) (shutdown func(), err error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(exporter)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info().Stringer("addr", listener.Addr()).Msg("serving metrics")
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	shutdown = func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("metrics server shutdown")
		}
	}
	return
}
