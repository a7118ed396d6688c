package influxdb

import (
	"crypto/tls"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

var (
	serverURL           string
	insecureSkipVerify  bool
	authToken           string
	orgName             string
	summariesBucketName string
	workoutsBucketName  string
	requestTimeout      time.Duration
	batchSize           int
	staticTags          []string
)

// NewInfluxDBClient returns a client for --influxdb.serverURL. Points are
// written with second precision, which is the finest any workout log records.
func NewInfluxDBClient() (influxdb2.Client, error) {
	if serverURL == "" {
		return nil, errors.New("--influxdb.serverURL is not set")
	}
	if summariesBucketName == "" || workoutsBucketName == "" {
		return nil, errors.New("--influxdb.summariesBucketName and --influxdb.workoutsBucketName must be set")
	}

	options := influxdb2.DefaultOptions().
		SetPrecision(time.Second).
		SetHTTPRequestTimeout(uint(requestTimeout.Seconds())).
		SetTLSConfig(&tls.Config{
			InsecureSkipVerify: insecureSkipVerify,
		})

	return influxdb2.NewClientWithOptions(serverURL, authToken, options), nil
}

func init() {
	pflag.StringVar(&serverURL, "influxdb.serverURL", "", "Server URL for InfluxDB.")
	pflag.BoolVar(&insecureSkipVerify, "influxdb.insecureSkipVerify", false,
		"Skip TLS verification of the certificate chain and host name for the InfluxDB server.")
	pflag.StringVar(&authToken, "influxdb.authToken", "", "Auth token to connect to InfluxDB.")
	pflag.StringVar(&orgName, "influxdb.orgName", "", "InfluxDB organization name.")
	pflag.StringVar(&summariesBucketName, "influxdb.summariesBucketName", "",
		"InfluxDB bucket name for daily and per-type summaries.")
	pflag.StringVar(&workoutsBucketName, "influxdb.workoutsBucketName", "", "InfluxDB bucket name for workouts.")
	pflag.DurationVar(&requestTimeout, "influxdb.requestTimeout", 20*time.Second, "Timeout for each write request to InfluxDB.")
	pflag.IntVar(&batchSize, "influxdb.batchSize", defaultBatchSize, "Maximum number of points sent in one write request.")
	pflag.StringSliceVar(&staticTags, "influxdb.staticTags", nil,
		"Additional tags to add to InfluxDB for every single request, in key=value format.")
}
