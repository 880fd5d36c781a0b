package observability

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service"`
	Version      string                      `json:"version"`
	Timestamp    string                      `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// DependencyCheck reports whether a dependency is usable right now.
// Checks must be cheap: they run on every /health request.
type DependencyCheck func() (bool, string)

// HealthCheckHandler reports service health along with the availability
// of each named dependency. The service is "degraded" rather than
// unhealthy when an optional dependency is missing; only a missing
// required dependency produces a 503.
func HealthCheckHandler(service, version string, required map[string]DependencyCheck, optional map[string]DependencyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dependencies := make(map[string]DependencyStatus)
		status := "healthy"
		code := http.StatusOK

		for name, check := range required {
			ok, msg := check()
			if ok {
				dependencies[name] = DependencyStatus{Status: "available"}
				continue
			}
			dependencies[name] = DependencyStatus{Status: "unavailable", Message: msg}
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		for name, check := range optional {
			ok, msg := check()
			if ok {
				dependencies[name] = DependencyStatus{Status: "available"}
				continue
			}
			dependencies[name] = DependencyStatus{Status: "unavailable", Message: msg}
			if status == "healthy" {
				status = "degraded"
			}
		}

		body := HealthStatus{
			Status:       status,
			Service:      service,
			Version:      version,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			Dependencies: dependencies,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}
