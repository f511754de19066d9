package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/niklaslong/zebra/services/state"
	"github.com/niklaslong/zebra/services/state/httpimpl"
	"github.com/niklaslong/zebra/settings"
	"github.com/niklaslong/zebra/stores/finalized/factory"
	"github.com/niklaslong/zebra/tracing"
	"github.com/niklaslong/zebra/ulogger"
	"github.com/ordishs/gocore"
	"golang.org/x/sync/errgroup"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "zebra-state"

// Version & commit strings injected at build with -ldflags -X...
var version string
var commit string

func init() {
	gocore.SetInfo(progname, version, commit)
}

func main() {
	help := flag.Bool("help", false, "Show help")
	serveHTTP := flag.Bool("http", true, "serve health, metrics, reads and block submission on state_httpListenAddress")

	flag.Parse()

	if *help {
		fmt.Println("usage: zebra-state [options]")
		fmt.Println("where options are:")
		fmt.Println("")
		fmt.Println("    -http=<1|0>")
		fmt.Println("          whether to serve health, metrics, reads and block submission over http (default=true)")
		fmt.Println("")

		return
	}

	tSettings := settings.NewSettings()
	logger := ulogger.New(progname, ulogger.WithLevel(tSettings.LogLevel), ulogger.WithLoggerType(tSettings.LoggerType))

	stats := gocore.Config().Stats()
	logger.Infof("STATS\n%s\nVERSION\n-------\n%s (%s)\n\n", stats, version, commit)

	go func() {
		profilerAddr, ok := gocore.Config().Get("profilerAddr")
		if ok {
			logger.Infof("Starting profile on http://%s/debug/pprof", profilerAddr)
			logger.Fatalf("%v", http.ListenAndServe(profilerAddr, nil))
		}
	}()

	if err := tracing.InitTracer(tSettings); err != nil {
		logger.Fatalf("failed to start tracer: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := factory.NewStore(logger, tSettings, nil)
	if err != nil {
		logger.Fatalf("failed to open finalized store: %v", err)
	}

	stateServer := state.New(logger, tSettings, store)

	if err = stateServer.Init(ctx); err != nil {
		logger.Fatalf("failed to initialise state: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	readyCh := make(chan struct{})

	g.Go(func() error {
		return stateServer.Start(ctx, readyCh)
	})

	if *serveHTTP && tSettings.State.HTTPListenAddress != "" {
		g.Go(func() error {
			select {
			case <-readyCh:
			case <-ctx.Done():
				return nil
			}

			return httpimpl.New(logger, tSettings, stateServer).Start(ctx, tSettings.State.HTTPListenAddress)
		})
	}

	<-ctx.Done()

	logger.Infof("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err = stateServer.Stop(shutdownCtx); err != nil {
		logger.Errorf("failed to stop state service: %v", err)
	}

	if err = tracing.ShutdownTracer(shutdownCtx); err != nil {
		logger.Errorf("failed to stop tracer: %v", err)
	}

	if err = g.Wait(); err != nil {
		logger.Errorf("server returning an error: %v", err)
		os.Exit(2)
	}
}
