// Package main provides the raftwire probe server. It wires the address
// registry, the gRPC messaging substrate, and the RPC transport under a
// diagnostic consensus handler, exposing a status endpoint and an optional
// dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quorumlabs/raftwire/pkg/messaging"
	"github.com/quorumlabs/raftwire/pkg/registry"
	"github.com/quorumlabs/raftwire/pkg/transport"
	"github.com/quorumlabs/raftwire/pkg/tui"
)

// registryDBFilename is the name of the BoltDB file persisting administered
// address mappings.
const registryDBFilename = "registry.db"

func main() {
	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logger.WithField("component", "server")

	cfg, err := ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("failed to parse flags")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("configuration validation failed")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.WithError(err).Fatalf("failed to create data directory %s", cfg.DataDir)
	}

	// Address registry, persisted so administered mappings survive restarts.
	dbPath := filepath.Join(cfg.DataDir, registryDBFilename)
	store, err := registry.NewBoltStore(dbPath)
	if err != nil {
		log.WithError(err).Fatalf("failed to open registry store at %s", dbPath)
	}
	addresses, err := registry.New(registry.Options{
		Store:  store,
		Logger: logger.WithField("component", "registry"),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to initialize address registry")
	}
	log.Infof("initialized address registry at %s", dbPath)

	// Outbound substrate half. The advertised address rides every envelope so
	// receivers can learn how to reach this server.
	client := messaging.NewClient(cfg.Advert)

	handler := newEchoHandler(logger.WithField("component", "echo"))
	rpc := transport.New(transport.Config{
		GroupID:      cfg.Group,
		LocalID:      cfg.ID,
		TickInterval: cfg.Tick,
		Logger:       logger.WithField("component", "transport"),
	}, client, addresses, handler)
	log.Infof("created transport for group %s as server %s", cfg.Group, cfg.ID)

	// Inbound substrate half, dispatching into the transport built above.
	listenAddr := fmt.Sprintf(":%d", cfg.Port)
	srv, err := messaging.NewServer(listenAddr, cfg.Group, rpc, addresses, logger.WithField("component", "messaging"))
	if err != nil {
		log.WithError(err).Fatalf("failed to start messaging server on %s", listenAddr)
	}
	log.Infof("messaging server listening on %s, advertising %s", srv.LocalAddr(), cfg.Advert)

	// Install administered mappings for the configured peers.
	for id, addr := range cfg.Peers {
		info, err := transport.EncodeServerInfo(addr)
		if err != nil {
			log.WithError(err).Fatalf("invalid peer address %s", addr)
		}
		if err := rpc.AddServer(id, info); err != nil {
			log.WithError(err).Fatalf("failed to add peer %s", id)
		}
		log.Infof("added peer %s at %s", id, addr)
	}

	// HTTP status and peer administration surface.
	mux := http.NewServeMux()
	mux.Handle("/status", NewStatusHandler(rpc, addresses, cfg.Advert))
	peersHandler := NewPeersHandler(rpc)
	mux.Handle("/peers", peersHandler)
	mux.Handle("/peers/", peersHandler)

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpServer := &http.Server{Addr: httpAddr, Handler: mux}
	go func() {
		log.Infof("starting HTTP server on %s", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if cfg.TUI {
		log.Info("starting TUI dashboard mode")

		fetcher := tui.NewHTTPFetcher(fmt.Sprintf("http://127.0.0.1:%d", cfg.HTTPPort))
		tuiApp, err := tui.NewApp(fetcher)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize TUI")
		}

		tuiErrChan := make(chan error, 1)
		go func() {
			tuiErrChan <- tuiApp.Run()
		}()

		select {
		case err := <-tuiErrChan:
			if err != nil {
				log.WithError(err).Error("TUI error")
			}
		case sig := <-sigChan:
			log.Infof("received signal %v, stopping TUI", sig)
			tuiApp.Stop()
			<-tuiErrChan
		}
	} else {
		sig := <-sigChan
		log.Infof("received signal %v, initiating graceful shutdown", sig)
	}

	exitCode := gracefulShutdown(log, httpServer, rpc, srv, client, addresses)
	os.Exit(exitCode)
}

// gracefulShutdown performs an orderly shutdown of all components: stop
// accepting HTTP requests, abort the transport so no new sends start and
// in-flight ones drain, then close both substrate halves and the registry.
// Returns 0 on successful shutdown, 1 on error.
func gracefulShutdown(log *logrus.Entry, httpServer *http.Server, rpc *transport.Transport, srv *messaging.Server, client *messaging.Client, addresses *registry.AddressMap) int {
	exitCode := 0

	log.Info("stopping HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("error shutting down HTTP server")
		exitCode = 1
	}

	log.Info("aborting transport")
	rpc.Abort()

	log.Info("closing messaging server")
	if err := srv.Close(); err != nil {
		log.WithError(err).Error("error closing messaging server")
		exitCode = 1
	}

	log.Info("closing messaging client")
	if err := client.Close(); err != nil {
		log.WithError(err).Error("error closing messaging client")
		exitCode = 1
	}

	log.Info("closing address registry")
	if err := addresses.Close(); err != nil {
		log.WithError(err).Error("error closing address registry")
		exitCode = 1
	}

	if exitCode == 0 {
		log.Info("graceful shutdown completed successfully")
	} else {
		log.Warn("graceful shutdown completed with errors")
	}
	return exitCode
}
