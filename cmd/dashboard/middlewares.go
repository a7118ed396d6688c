package main

import (
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	bearerPrefix = "Bearer "
)

type Middleware func(http.Handler) http.Handler

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// createLoggingHandler returns a middleware that will log http requests.
func createLoggingHandler(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				logger.WithFields(log.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"query":       r.URL.RawQuery,
					"status":      recorder.status,
					"remote_addr": r.RemoteAddr,
					"user_agent":  r.UserAgent(),
					"elapsed":     time.Since(startTime),
				}).Info("http request")
			}()
			next.ServeHTTP(recorder, r)
		})
	}
}

// createAuthenticateHandler returns a middleware that will authenticate
// incoming http requests against token. An empty token disables authentication.
func createAuthenticateHandler(token string) Middleware {
	return func(next http.Handler) http.Handler {
		unauthorized := func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("unauthorized"))
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				header := r.Header.Get("Authorization")
				if !strings.HasPrefix(header, bearerPrefix) {
					unauthorized(w)
					return
				}
				if header[len(bearerPrefix):] != token {
					unauthorized(w)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allowMethod rejects requests not using method.
func allowMethod(method string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = w.Write([]byte("method not allowed"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// chain wraps handler in middlewares, with the first middleware innermost.
func chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for _, middleware := range middlewares {
		handler = middleware(handler)
	}
	return handler
}
