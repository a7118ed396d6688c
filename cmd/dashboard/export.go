package main

import (
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/irvinlim/apple-health-dashboard/pkg/backends"
	"github.com/irvinlim/apple-health-dashboard/pkg/pipeline"
)

type RegisterBackendFunc func(server *Server, mux *http.ServeMux) error

// RegisterBackend adds backend to the server's exporter, and serves exports
// into it at pattern.
func RegisterBackend(backend backends.Backend, server *Server, mux *http.ServeMux, pattern string) error {
	if err := server.exporter.AddBackend(backend); err != nil {
		return err
	}
	mux.Handle(pattern, allowMethod(http.MethodPost, server.handleExport(backend.Name())))

	log.WithField("backend", backend.Name()).Info("registered backend")
	return nil
}

// handleExport queues a report over the filtered dataset for the named backend.
func (s *Server) handleExport(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dataset, spec, ok := s.loadFiltered(w, r)
		if !ok {
			return
		}

		target := r.URL.Query().Get("target")
		report := pipeline.BuildReport(dataset.Records, spec)
		if err := s.exporter.Export(report, name, target); err != nil {
			err := errors.Wrapf(err, "export error for %v", name)
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		log.WithFields(log.Fields{
			"backend": name,
			"target":  target,
			"days":    len(report.Daily),
		}).Info("queued report for export")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})
}
