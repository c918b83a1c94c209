package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/puzzlekit/app/services/node/handlers"
	"github.com/ardanlabs/puzzlekit/business/core/wallet"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/storage/leveldb"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/ardanlabs/puzzlekit/foundation/events"
	"github.com/ardanlabs/puzzlekit/foundation/logger"
	"github.com/ardanlabs/puzzlekit/foundation/nameservice"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("PUZZLEKIT")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		Puzzles struct {
			Dir      string
			StandIns bool `conf:"default:true"`
		}
		Store struct {
			Kind string `conf:"default:memory"`
			Path string `conf:"default:zblock/coins.db"`
		}
		Spend struct {
			MaxCost  uint64 `conf:"default:11000000000"`
			Strategy string `conf:"default:knapsack"`
		}
		Keys struct {
			Folder string `conf:"default:zblock/keys/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "puzzle driver node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "PUZZLEKIT"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Events Support

	// The business packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(topic string) func(v string, args ...any) {
		send := evts.Handler(topic)
		return func(v string, args ...any) {
			log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
			send(v, args...)
		}
	}

	// =========================================================================
	// Puzzle Library Support

	lib, err := puzzles.Load(cfg.Puzzles.Dir)
	if err != nil {
		return fmt.Errorf("loading puzzles: %w", err)
	}

	var missing []string
	for _, name := range puzzles.External {
		if !lib.Has(name) {
			missing = append(missing, string(name))
		}
	}
	if len(missing) > 0 {
		if !cfg.Puzzles.StandIns {
			return fmt.Errorf("puzzles missing from %q: %v", cfg.Puzzles.Dir, missing)
		}
		log.Infow("startup", "status", "using stand-in puzzles", "missing", missing)
		lib = lib.WithStandIns()
	}

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for puzzle hashes.
	// The names come from the file names in the keys folder.
	ns, err := nameservice.New(cfg.Keys.Folder, func(pub []byte) clvm.Bytes32 {
		return layers.StandardPuzzleHash(lib, pub)
	})
	if err != nil {
		return fmt.Errorf("unable to load key name service: %w", err)
	}

	// Logging the keys for documentation in the logs.
	for puzzleHash, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "puzzlehash", puzzleHash)
	}

	// =========================================================================
	// Coin Store Support

	var storage database.Storage
	switch cfg.Store.Kind {
	case "memory":
		storage, err = memory.New()
	case "leveldb":
		storage, err = leveldb.New(cfg.Store.Path)
	default:
		err = fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
	if err != nil {
		return fmt.Errorf("opening coin store: %w", err)
	}

	store, err := database.New(storage, ev("coins"))
	if err != nil {
		return fmt.Errorf("loading coin store: %w", err)
	}
	defer store.Close()

	// The wallet plans sends for the keys of the name service over the coins
	// held by the store.
	wal, err := wallet.New(wallet.Config{
		Library:   lib,
		Store:     store,
		Keys:      ns,
		Strategy:  cfg.Spend.Strategy,
		MaxCost:   cfg.Spend.MaxCost,
		EvHandler: ev("spends"),
	})
	if err != nil {
		return err
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, store)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	muxCfg := handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Library:  lib,
		Store:    store,
		Wallet:   wal,
		Evts:     evts,
	}

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      handlers.PublicMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      handlers.PrivateMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
