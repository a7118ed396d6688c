package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/irvinlim/apple-health-dashboard/pkg/cache"
	"github.com/irvinlim/apple-health-dashboard/pkg/exporter"
	"github.com/irvinlim/apple-health-dashboard/pkg/loader"
	"github.com/irvinlim/apple-health-dashboard/pkg/workouts"
)

func main() {
	pflag.Parse()
	mux := http.NewServeMux()

	// Set log level
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			log.Fatalf("cannot parse log level: %v", logLevel)
		}
		log.WithField("log_level", level).Info("setting log level")
		log.SetLevel(level)
	}

	if dataPath == "" {
		log.Fatal("--data.path is not set, see --help")
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		log.WithError(err).Fatalf("cannot load time zone: %v", timezone)
	}

	// Load the workout log once up front so that a bad file fails fast.
	opts := loader.Options{
		RestrictToYear: restrictToYear,
		Location:       location,
	}
	datasets := cache.NewLoader(func(path string) (*workouts.Dataset, error) {
		return loader.LoadFile(path, opts)
	}, cacheSizeMB, cacheTTL)
	if _, err := datasets.Get(dataPath); err != nil {
		log.WithError(err).Fatal("cannot load workout log")
	}

	export := exporter.NewExporter()
	server := NewServer(dataPath, datasets, export)
	server.Register(mux)

	// Initialize and register backends for exporter
	for _, register := range []RegisterBackendFunc{
		RegisterLocalFileBackend,
		RegisterInfluxDBBackend,
	} {
		if err := register(server, mux); err != nil {
			log.WithError(err).Fatal("add backend error")
		}
	}
	if backends := export.ListBackends(); len(backends) == 0 {
		log.Warn("no export backends configured")
	}

	httpServer := &http.Server{
		Addr: listenAddr,
		Handler: chain(mux,
			createAuthenticateHandler(authorizationToken),
			createLoggingHandler(log.StandardLogger()),
		),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
		},
	}

	// Start exporter
	log.Info("starting exporter")
	export.Start()

	// Start http server
	go func() {
		log.WithField("listen_addr", listenAddr).Info("starting http server")
		var err error
		if enableTLS {
			err = httpServer.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Panicf("cannot start http server")
		}
	}()

	// Wait for server to quit
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	go func() {
		<-quit
		log.Info("http server shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Shut down http server with a timeout to prevent any further incoming requests.
		if err := httpServer.Shutdown(ctx); err != nil {
			log.WithError(err).Error("could not gracefully shut down http server")
		}

		close(done)
	}()
	<-done
	log.Println("http server stopped")

	// Shutdown exporter, will block until all queued reports are written.
	log.Info("exporter shutting down")
	export.Shutdown()
	log.Info("exporter shut down")
}
