// Command wotd runs the Web-of-Trust daemon: the Graph Store, Trust Graph
// API, Score Engine, Download Policy/Fast/Slow pipeline, Maintenance
// Scheduler and HTTP control surface, wired together the way the teacher's
// main (node.go) wires QuidnugNode's registries, background loops and HTTP
// server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freenet/plugin-wot/internal/config"
	"github.com/freenet/plugin-wot/internal/discovery"
	"github.com/freenet/plugin-wot/internal/download"
	"github.com/freenet/plugin-wot/internal/graph"
	"github.com/freenet/plugin-wot/internal/httpapi"
	"github.com/freenet/plugin-wot/internal/keystore"
	"github.com/freenet/plugin-wot/internal/logging"
	"github.com/freenet/plugin-wot/internal/scheduler"
	"github.com/freenet/plugin-wot/internal/scoreengine"
	"github.com/freenet/plugin-wot/internal/store"
	"github.com/freenet/plugin-wot/internal/telemetry"
	"github.com/freenet/plugin-wot/internal/transport"
)

func main() {
	cfgPath := os.Getenv("WOTD_CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logging.Logger.Error("failed to create data directory", "dataDir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	s, err := openStore(cfg.DataDir)
	if err != nil {
		logging.Logger.Error("failed to open graph store", "error", err)
		os.Exit(1)
	}

	keys, err := openKeyStore(cfg)
	if err != nil {
		logging.Logger.Error("failed to open identity key store", "error", err)
		os.Exit(1)
	}
	if closer, ok := keys.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	scores := scoreengine.New(s, cfg.MinCapacity())

	client := transport.NewHTTPPollingClient("", &http.Client{Timeout: 30 * time.Second}, 5*time.Second)
	fastDownloader := download.NewFastDownloader(client, nil)
	slowDownloader := download.NewSlowDownloader(s, client, nil, cfg.HintQueueConcurrency)
	coordinator := download.NewCoordinator(s, fastDownloader, slowDownloader)

	g := graph.New(s, scores, coordinator)
	fastDownloader.SetGraph(g)
	slowDownloader.SetGraph(g)

	slowDownloader.Start()
	defer slowDownloader.Stop()

	sched := scheduler.New(s, scores, store.SnapshotPath(cfg.DataDir))
	sched.Start(cfg.VerificationInterval, cfg.DefragInterval)

	var advertiser *discovery.Advertiser
	if cfg.MDNSDiscoveryEnabled {
		browser, err := discovery.NewBrowser()
		if err != nil {
			logging.Logger.Warn("mDNS discovery browser failed to start", "error", err)
		} else {
			discCtx, discCancel := context.WithCancel(context.Background())
			defer discCancel()
			if err := browser.Start(discCtx); err != nil {
				logging.Logger.Warn("mDNS discovery browse failed to start", "error", err)
			}
		}

		adv, err := discovery.Advertise("wotd", mustAtoi(cfg.Port), nil)
		if err != nil {
			logging.Logger.Warn("mDNS advertiser failed to start", "error", err)
		} else {
			advertiser = adv
		}
	}
	if advertiser != nil {
		defer advertiser.Shutdown()
	}

	router := httpapi.NewRouter(g, scores, s, cfg.RateLimitPerMinute, cfg.MaxBodySizeBytes, cfg.NodeAuthSecret)
	tracedRouter := telemetry.WrapHTTPHandler(router, "wotd.http")

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: tracedRouter,
	}

	serverErrs := make(chan error, 1)
	go func() {
		logging.Logger.Info("starting HTTP server", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrs <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErrs:
		logging.Logger.Error("HTTP server failed", "error", err)
	}

	shutdown(cfg, s, sched, httpServer)
}

// shutdown drains in-flight HTTP requests, terminates every scheduled job
// and takes a final snapshot, mirroring the teacher's best-effort cleanup
// pattern (node.go has none; this is the daemon-lifecycle piece the
// library-shaped teacher never needed).
func shutdown(cfg *config.Config, s *store.Store, sched *scheduler.Scheduler, httpServer *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Logger.Warn("HTTP server did not shut down cleanly", "error", err)
	}

	if notTerminated := sched.Stop(cfg.ShutdownTimeout); len(notTerminated) > 0 {
		logging.Logger.Warn("some maintenance jobs did not terminate in time", "jobs", notTerminated)
	}

	path := store.SnapshotPath(cfg.DataDir)
	if err := s.Save(path); err != nil {
		logging.Logger.Error("failed to save final snapshot", "path", path, "error", err)
	}
}

// openStore loads an existing snapshot from dataDir, or starts a fresh
// Store if none exists yet.
func openStore(dataDir string) (*store.Store, error) {
	path := store.SnapshotPath(dataDir)
	if _, err := os.Stat(path); err == nil {
		return store.Load(path)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return store.New()
}

// openKeyStore selects the PKCS#11-backed key store when a module path is
// configured, falling back to the in-memory ECDSA key store otherwise (spec
// §6: "OwnIdentity private key custody is delegated to an IdentityKeyStore
// implementation").
func openKeyStore(cfg *config.Config) (keystore.IdentityKeyStore, error) {
	if cfg.PKCS11ModulePath == "" {
		return keystore.NewMemoryKeyStore(), nil
	}
	pin := os.Getenv("WOTD_PKCS11_PIN")
	return keystore.OpenPKCS11KeyStore(cfg.PKCS11ModulePath, pin)
}

func mustAtoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
