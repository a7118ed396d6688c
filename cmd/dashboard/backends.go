package main

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/irvinlim/apple-health-dashboard/pkg/backends/influxdb"
	"github.com/irvinlim/apple-health-dashboard/pkg/backends/localfile"
)

// RegisterLocalFileBackend registers the LocalFile backend.
func RegisterLocalFileBackend(server *Server, mux *http.ServeMux) error {
	if !enableLocalFile {
		return nil
	}
	backend, err := localfile.NewBackend()
	if err != nil {
		return err
	}
	return RegisterBackend(backend, server, mux, pathPrefix+"/export/localfile")
}

// RegisterInfluxDBBackend registers the InfluxDB backend.
func RegisterInfluxDBBackend(server *Server, mux *http.ServeMux) error {
	if !enableInfluxDB {
		return nil
	}
	client, err := influxdb.NewClient()
	if err != nil {
		return errors.Wrapf(err, "cannot initialize client")
	}
	backend, err := influxdb.NewBackend(client)
	if err != nil {
		return err
	}
	return RegisterBackend(backend, server, mux, pathPrefix+"/export/influxdb")
}
