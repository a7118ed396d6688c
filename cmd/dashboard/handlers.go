package main

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/irvinlim/apple-health-dashboard/pkg/cache"
	"github.com/irvinlim/apple-health-dashboard/pkg/exporter"
	"github.com/irvinlim/apple-health-dashboard/pkg/pipeline"
	"github.com/irvinlim/apple-health-dashboard/pkg/workouts"
)

const (
	pathPrefix = "/api/v1"
)

// Server serves views over the workout log at dataPath.
type Server struct {
	dataPath string
	datasets *cache.Loader
	exporter *exporter.Exporter
}

func NewServer(dataPath string, datasets *cache.Loader, export *exporter.Exporter) *Server {
	return &Server{
		dataPath: dataPath,
		datasets: datasets,
		exporter: export,
	}
}

// Register adds the read and reload endpoints to mux. Export endpoints are
// added per backend by RegisterBackend.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle(pathPrefix+"/workouts", allowMethod(http.MethodGet, http.HandlerFunc(s.handleWorkouts)))
	mux.Handle(pathPrefix+"/report", allowMethod(http.MethodGet, http.HandlerFunc(s.handleReport)))
	mux.Handle(pathPrefix+"/summary/daily", allowMethod(http.MethodGet, http.HandlerFunc(s.handleDaily)))
	mux.Handle(pathPrefix+"/summary/daily-by-type", allowMethod(http.MethodGet, http.HandlerFunc(s.handleDailyByType)))
	mux.Handle(pathPrefix+"/summary/column", allowMethod(http.MethodGet, http.HandlerFunc(s.handleColumn)))
	mux.Handle(pathPrefix+"/types", allowMethod(http.MethodGet, http.HandlerFunc(s.handleTypes)))
	mux.Handle(pathPrefix+"/schema", allowMethod(http.MethodGet, http.HandlerFunc(s.handleSchema)))
	mux.Handle(pathPrefix+"/reload", allowMethod(http.MethodPost, http.HandlerFunc(s.handleReload)))
}

func (s *Server) handleWorkouts(w http.ResponseWriter, r *http.Request) {
	dataset, spec, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}
	writeJSON(w, pipeline.Filter(dataset.Records, spec))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	dataset, spec, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}
	writeJSON(w, pipeline.BuildReport(dataset.Records, spec))
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	dataset, spec, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}
	_, daily := pipeline.Aggregate(dataset.Records, spec)
	writeJSON(w, daily)
}

func (s *Server) handleDailyByType(w http.ResponseWriter, r *http.Request) {
	dataset, spec, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}
	writeJSON(w, pipeline.AggregateByType(dataset.Records, spec))
}

func (s *Server) handleColumn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keys := pipeline.ByDate
	if raw := q.Get("keys"); raw != "" {
		parsed, err := pipeline.ParseKeySet(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		keys = parsed
	}

	dataset, spec, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}
	cells, err := pipeline.AggregateBy(pipeline.Filter(dataset.Records, spec), keys, q.Get("column"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, cells)
}

type typesResponse struct {
	Types     []string       `json:"types"`
	FirstDate *workouts.Date `json:"first_date,omitempty"`
	LastDate  *workouts.Date `json:"last_date,omitempty"`
}

// handleTypes lists the choices for filtering: every type in the log, and the
// default date range.
func (s *Server) handleTypes(w http.ResponseWriter, _ *http.Request) {
	dataset, ok := s.load(w)
	if !ok {
		return
	}
	resp := typesResponse{Types: pipeline.AllTypes(dataset.Records)}
	if first, last, ok := pipeline.DateBounds(dataset.Records); ok {
		resp.FirstDate = &first
		resp.LastDate = &last
	}
	writeJSON(w, resp)
}

type schemaResponse struct {
	Source  string            `json:"source"`
	Columns []workouts.Column `json:"columns"`
	Records int               `json:"records"`
	Dropped int               `json:"dropped"`
}

func newSchemaResponse(dataset *workouts.Dataset) schemaResponse {
	return schemaResponse{
		Source:  dataset.Source,
		Columns: dataset.Schema.Columns(),
		Records: len(dataset.Records),
		Dropped: dataset.Dropped,
	}
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	dataset, ok := s.load(w)
	if !ok {
		return
	}
	writeJSON(w, newSchemaResponse(dataset))
}

// handleReload drops the cached dataset and loads it again.
func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	s.datasets.Invalidate(s.dataPath)
	dataset, ok := s.load(w)
	if !ok {
		return
	}
	log.WithFields(log.Fields{
		"source":  dataset.Source,
		"records": len(dataset.Records),
	}).Info("reloaded workout log")
	writeJSON(w, newSchemaResponse(dataset))
}

func (s *Server) load(w http.ResponseWriter) (*workouts.Dataset, bool) {
	dataset, err := s.datasets.Get(s.dataPath)
	if err != nil {
		log.WithError(err).WithField("source", s.dataPath).Error("cannot load workout log")
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return dataset, true
}

// loadFiltered loads the dataset and parses the filter selection of the request.
func (s *Server) loadFiltered(w http.ResponseWriter, r *http.Request) (*workouts.Dataset, pipeline.FilterSpec, bool) {
	dataset, ok := s.load(w)
	if !ok {
		return nil, pipeline.FilterSpec{}, false
	}
	spec, err := parseFilter(r, dataset.Records)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, pipeline.FilterSpec{}, false
	}
	return dataset, spec, true
}

// parseFilter reads start, end and type from the query. The dates only narrow
// the selection when both are given; a lone start or end is validated and then
// ignored. Without any type parameter every type in records is allowed, while
// an empty type parameter allows none.
func parseFilter(r *http.Request, records []workouts.WorkoutRecord) (pipeline.FilterSpec, error) {
	q := r.URL.Query()
	var spec pipeline.FilterSpec

	for name, bound := range map[string]**workouts.Date{
		"start": &spec.StartDate,
		"end":   &spec.EndDate,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		date, err := workouts.ParseDate(raw)
		if err != nil {
			return spec, errors.Wrapf(err, "invalid %v date", name)
		}
		*bound = &date
	}

	types, ok := q["type"]
	if !ok {
		spec.AllowedTypes = pipeline.NewTypeSet(pipeline.AllTypes(records)...)
		return spec, nil
	}
	spec.AllowedTypes = pipeline.NewTypeSet()
	for _, t := range types {
		if t != "" {
			spec.AllowedTypes[t] = struct{}{}
		}
	}
	return spec, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	body, err := jsoniter.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.Wrapf(err, "cannot encode response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
