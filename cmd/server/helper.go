package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Response helpers shared by all API handlers

// jsonResponse writes a JSON body and records the request outcome.
func (s *Server) jsonResponse(w http.ResponseWriter, r *http.Request, statusCode int, body interface{}) {
	s.metrics.requestCounter.WithLabelValues(r.URL.Path, "success").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Warnf("Failed to encode response: %v", err)
	}
}

// errorResponse writes a JSON error body and records the failure.
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	logrus.WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"status": statusCode,
	}).Warn(message)

	s.metrics.requestCounter.WithLabelValues(r.URL.Path, "error").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "error",
		"error":  message,
	})
}

// queryInt parses a required integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s parameter", name)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: %q", name, raw)
	}
	return value, nil
}

// queryIntOrDefault parses an optional integer query parameter.
func queryIntOrDefault(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(raw); err == nil {
		return value
	}
	logrus.Warnf("Invalid %s parameter %q, using default %d", name, raw, defaultValue)
	return defaultValue
}
