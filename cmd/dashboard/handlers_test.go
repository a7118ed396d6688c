package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/irvinlim/apple-health-dashboard/pkg/backends/noop"
	"github.com/irvinlim/apple-health-dashboard/pkg/cache"
	"github.com/irvinlim/apple-health-dashboard/pkg/exporter"
	"github.com/irvinlim/apple-health-dashboard/pkg/loader"
	"github.com/irvinlim/apple-health-dashboard/pkg/pipeline"
	"github.com/irvinlim/apple-health-dashboard/pkg/util/testutils"
	"github.com/irvinlim/apple-health-dashboard/pkg/workouts"
)

const (
	fixture = "workout_start,workout_type,duration_min,avg_hr,calories,afib_events\n" +
		"2025-01-01 07:00:00,run,30,130,300,0\n" +
		"2025-01-01 18:00:00,bike,45,120,400,1\n" +
		"2025-01-02 07:00:00,run,20,,200,0\n" +
		"2025-01-03 07:00:00,,10,,,\n"
)

var (
	jan1 = workouts.NewDate(2025, 1, 1)
	jan2 = workouts.NewDate(2025, 1, 2)

	cmpOptions = []cmp.Option{
		cmpopts.EquateEmpty(),
	}
)

type serverTest struct {
	mux     *http.ServeMux
	export  *exporter.Exporter
	backend *noop.Backend
	path    string
}

func newServerTest(t *testing.T) *serverTest {
	path := testutils.WriteFile(t, "workouts.csv", fixture)
	datasets := cache.NewLoader(func(path string) (*workouts.Dataset, error) {
		return loader.LoadFile(path, loader.Options{})
	}, 16, 0)

	test := &serverTest{
		mux:     http.NewServeMux(),
		export:  exporter.NewExporter(),
		backend: noop.NewBackend(),
		path:    path,
	}
	server := NewServer(path, datasets, test.export)
	server.Register(test.mux)
	if err := RegisterBackend(test.backend, server, test.mux, pathPrefix+"/export/noop"); err != nil {
		t.Fatalf("cannot register backend: %v", err)
	}
	return test
}

func (s *serverTest) do(method, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	s.mux.ServeHTTP(recorder, httptest.NewRequest(method, target, nil))
	return recorder
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder, v interface{}) bool {
	if !assert.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String()) {
		return false
	}
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	return assert.NoError(t, jsoniter.Unmarshal(recorder.Body.Bytes(), v))
}

func TestServer_Daily(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		want       []pipeline.DailySummary
		wantStatus int
	}{
		{
			name:  "no filters",
			query: "",
			want: []pipeline.DailySummary{
				{Date: jan1, WorkoutCount: 2, AvgHR: 125, TotalDuration: 75, TotalCalories: 700, AfibEvents: 1},
				{Date: jan2, WorkoutCount: 1, TotalDuration: 20, TotalCalories: 200},
			},
		},
		{
			name:  "date range",
			query: "?start=2025-01-02&end=2025-01-31",
			want: []pipeline.DailySummary{
				{Date: jan2, WorkoutCount: 1, TotalDuration: 20, TotalCalories: 200},
			},
		},
		{
			name:  "lone start date is ignored",
			query: "?start=2025-01-02",
			want: []pipeline.DailySummary{
				{Date: jan1, WorkoutCount: 2, AvgHR: 125, TotalDuration: 75, TotalCalories: 700, AfibEvents: 1},
				{Date: jan2, WorkoutCount: 1, TotalDuration: 20, TotalCalories: 200},
			},
		},
		{
			name:  "lone end date is ignored",
			query: "?end=2025-01-01",
			want: []pipeline.DailySummary{
				{Date: jan1, WorkoutCount: 2, AvgHR: 125, TotalDuration: 75, TotalCalories: 700, AfibEvents: 1},
				{Date: jan2, WorkoutCount: 1, TotalDuration: 20, TotalCalories: 200},
			},
		},
		{
			name:  "single type",
			query: "?type=bike",
			want: []pipeline.DailySummary{
				{Date: jan1, WorkoutCount: 1, AvgHR: 120, TotalDuration: 45, TotalCalories: 400, AfibEvents: 1},
			},
		},
		{
			name:  "repeated type",
			query: "?type=bike&type=run&start=2025-01-01&end=2025-01-01",
			want: []pipeline.DailySummary{
				{Date: jan1, WorkoutCount: 2, AvgHR: 125, TotalDuration: 75, TotalCalories: 700, AfibEvents: 1},
			},
		},
		{
			name:  "empty type set",
			query: "?type=",
		},
		{
			name:  "unknown type",
			query: "?type=swim",
		},
		{
			name:  "inverted range",
			query: "?start=2025-01-02&end=2025-01-01",
		},
		{
			name:       "invalid date",
			query:      "?start=01/02/2025",
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			test := newServerTest(t)
			recorder := test.do(http.MethodGet, pathPrefix+"/summary/daily"+tt.query)
			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, recorder.Code)
				return
			}
			var got []pipeline.DailySummary
			if !decode(t, recorder, &got) {
				return
			}
			if !cmp.Equal(tt.want, got, cmpOptions...) {
				t.Errorf("daily summary not equal\ndiff = %v", cmp.Diff(tt.want, got, cmpOptions...))
			}
		})
	}
}

func TestServer_Workouts(t *testing.T) {
	test := newServerTest(t)

	var got []workouts.WorkoutRecord
	if !decode(t, test.do(http.MethodGet, pathPrefix+"/workouts?type=run"), &got) {
		return
	}
	if assert.Len(t, got, 2) {
		assert.Equal(t, jan1, got[0].Date)
		assert.Equal(t, jan2, got[1].Date)
		assert.Nil(t, got[1].AvgHR)
	}

	assert.Equal(t, http.StatusMethodNotAllowed, test.do(http.MethodPost, pathPrefix+"/workouts").Code)
}

func TestServer_DailyByType(t *testing.T) {
	test := newServerTest(t)

	var got []pipeline.TypeDailySummary
	if !decode(t, test.do(http.MethodGet, pathPrefix+"/summary/daily-by-type"), &got) {
		return
	}
	want := []pipeline.TypeDailySummary{
		{Type: "bike", DailySummary: pipeline.DailySummary{Date: jan1, WorkoutCount: 1, AvgHR: 120, TotalDuration: 45, TotalCalories: 400, AfibEvents: 1}},
		{Type: "run", DailySummary: pipeline.DailySummary{Date: jan1, WorkoutCount: 1, AvgHR: 130, TotalDuration: 30, TotalCalories: 300}},
		{Type: "run", DailySummary: pipeline.DailySummary{Date: jan2, WorkoutCount: 1, TotalDuration: 20, TotalCalories: 200}},
	}
	if !cmp.Equal(want, got, cmpOptions...) {
		t.Errorf("daily by type not equal\ndiff = %v", cmp.Diff(want, got, cmpOptions...))
	}
}

func TestServer_Column(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		want       []pipeline.Cell
		wantStatus int
	}{
		{
			name:  "default keys",
			query: "?column=total_calories",
			want: []pipeline.Cell{
				{GroupKey: pipeline.GroupKey{Date: jan1}, Value: 700},
				{GroupKey: pipeline.GroupKey{Date: jan2}, Value: 200},
			},
		},
		{
			name:  "date and type",
			query: "?keys=type,date&column=workout_count&type=run",
			want: []pipeline.Cell{
				{GroupKey: pipeline.GroupKey{Date: jan1, Type: "run"}, Value: 1},
				{GroupKey: pipeline.GroupKey{Date: jan2, Type: "run"}, Value: 1},
			},
		},
		{
			name:       "unknown column",
			query:      "?column=steps",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported keys",
			query:      "?keys=type&column=avg_hr",
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			test := newServerTest(t)
			recorder := test.do(http.MethodGet, pathPrefix+"/summary/column"+tt.query)
			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, recorder.Code)
				return
			}
			var got []pipeline.Cell
			if !decode(t, recorder, &got) {
				return
			}
			if !cmp.Equal(tt.want, got, cmpOptions...) {
				t.Errorf("cells not equal\ndiff = %v", cmp.Diff(tt.want, got, cmpOptions...))
			}
		})
	}
}

func TestServer_Report(t *testing.T) {
	test := newServerTest(t)

	var got pipeline.Report
	if !decode(t, test.do(http.MethodGet, pathPrefix+"/report?start=2025-01-01"), &got) {
		return
	}
	assert.Len(t, got.Records, 3)
	assert.Len(t, got.Daily, 2)
	assert.Len(t, got.ByType, 3)
	assert.Equal(t, pipeline.Totals{Days: 2, Workouts: 3, AfibEvents: 1, TotalDuration: 95, TotalCalories: 900}, got.Totals)
	assert.Equal(t, []pipeline.TypeCount{{Type: "run", Count: 2}, {Type: "bike", Count: 1}}, got.Distribution)
}

func TestServer_TypesAndSchema(t *testing.T) {
	test := newServerTest(t)

	var types typesResponse
	if !decode(t, test.do(http.MethodGet, pathPrefix+"/types"), &types) {
		return
	}
	assert.Equal(t, []string{"bike", "run"}, types.Types)
	if assert.NotNil(t, types.FirstDate) && assert.NotNil(t, types.LastDate) {
		assert.Equal(t, jan1, *types.FirstDate)
		assert.Equal(t, jan2, *types.LastDate)
	}

	var schema schemaResponse
	if !decode(t, test.do(http.MethodGet, pathPrefix+"/schema"), &schema) {
		return
	}
	want := schemaResponse{
		Source: test.path,
		Columns: []workouts.Column{
			workouts.ColumnAfibEvents,
			workouts.ColumnAvgHR,
			workouts.ColumnCalories,
			workouts.ColumnDurationMin,
			workouts.ColumnStart,
			workouts.ColumnType,
		},
		Records: 3,
		Dropped: 1,
	}
	if !cmp.Equal(want, schema) {
		t.Errorf("schema not equal\ndiff = %v", cmp.Diff(want, schema))
	}
}

func TestServer_Reload(t *testing.T) {
	test := newServerTest(t)

	var schema schemaResponse
	if !decode(t, test.do(http.MethodGet, pathPrefix+"/schema"), &schema) {
		return
	}
	assert.Equal(t, 3, schema.Records)

	assert.Equal(t, http.StatusMethodNotAllowed, test.do(http.MethodGet, pathPrefix+"/reload").Code)

	content := fixture + "2025-01-04 07:00:00,yoga,60,,150,0\n"
	if err := os.WriteFile(test.path, []byte(content), 0644); err != nil {
		t.Fatalf("cannot rewrite fixture: %v", err)
	}
	if !decode(t, test.do(http.MethodPost, pathPrefix+"/reload"), &schema) {
		return
	}
	assert.Equal(t, 4, schema.Records)
	assert.Equal(t, 1, schema.Dropped)
}

func TestServer_LoadError(t *testing.T) {
	path := testutils.WriteFile(t, "workouts.csv", "date,calories\n2025-01-01,100\n")
	datasets := cache.NewLoader(func(path string) (*workouts.Dataset, error) {
		return loader.LoadFile(path, loader.Options{})
	}, 16, 0)
	mux := http.NewServeMux()
	NewServer(path, datasets, exporter.NewExporter()).Register(mux)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, pathPrefix+"/summary/daily", nil))
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "missing required column")
}

func TestServer_Export(t *testing.T) {
	test := newServerTest(t)

	// Exports are rejected until the exporter is started.
	assert.Equal(t, http.StatusInternalServerError, test.do(http.MethodPost, pathPrefix+"/export/noop?target=alice").Code)

	test.export.Start()
	assert.Equal(t, http.StatusAccepted, test.do(http.MethodPost, pathPrefix+"/export/noop?target=alice&type=run").Code)
	assert.Equal(t, http.StatusBadRequest, test.do(http.MethodPost, pathPrefix+"/export/noop?end=yesterday").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, test.do(http.MethodGet, pathPrefix+"/export/noop").Code)
	test.export.Shutdown()

	writes := test.backend.Writes()
	if assert.Len(t, writes, 1) {
		assert.Len(t, writes[0].Records, 2)
		assert.Equal(t, 2, writes[0].Totals.Days)
	}
}

func TestMiddlewares_Authenticate(t *testing.T) {
	handler := chain(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}),
		createAuthenticateHandler("secret"),
		createLoggingHandler(log.StandardLogger()),
	)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "no header", header: "", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic secret", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer wrong", want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer secret", want: http.StatusOK},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, pathPrefix+"/types", strings.NewReader(""))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)
			assert.Equal(t, tt.want, recorder.Code)
		})
	}
}
