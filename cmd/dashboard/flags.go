package main

import (
	"time"

	"github.com/spf13/pflag"
)

var (
	dataPath           string
	restrictToYear     int
	timezone           string
	cacheSizeMB        int
	cacheTTL           time.Duration
	listenAddr         string
	authorizationToken string
	enableInfluxDB     bool
	enableLocalFile    bool
	enableTLS          bool
	certFile           string
	keyFile            string
	logLevel           string
)

func init() {
	pflag.StringVar(&dataPath, "data.path", "", "Path to the workout log CSV file. Required.")
	pflag.IntVar(&restrictToYear, "data.restrictYear", 0,
		"Only keep workouts starting in this year. Zero keeps every year.")
	pflag.StringVar(&timezone, "data.timezone", "UTC",
		"Time zone for timestamps in the workout log that have no offset.")
	pflag.IntVar(&cacheSizeMB, "cache.sizeMB", 256, "Size of the loaded dataset cache in megabytes.")
	pflag.DurationVar(&cacheTTL, "cache.ttl", 0,
		"Expire loaded datasets after this duration. Zero keeps them until the file changes.")
	pflag.StringVar(&listenAddr, "http.listenAddr", ":8080", "Address to listen on.")
	pflag.StringVar(&authorizationToken, "http.authToken", "",
		"Optional authorization token that will be used to authenticate incoming requests.")
	pflag.BoolVar(&enableInfluxDB, "backend.influxdb", false, "Enable the InfluxDB export backend.")
	pflag.BoolVar(&enableLocalFile, "backend.localfile", false, "Enable the LocalFile export backend.")
	pflag.BoolVar(&enableTLS, "http.enableTLS", false, "Enable TLS/HTTPS. Requires setting certificate and key files.")
	pflag.StringVar(&certFile, "http.certFile", "", "Certificate file for TLS support.")
	pflag.StringVar(&keyFile, "http.keyFile", "", "Key file for TLS support.")
	pflag.StringVar(&logLevel, "log.level", "info", "Log level (trace, debug, info, warn, error).")
}
