package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

// Health returns basic health check
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status    string                 `json:"status"`
	LatencyMs int64                  `json:"latency_ms,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// SessionChecker reports whether the Slack session is connected
type SessionChecker interface {
	IsConnected() bool
}

// BrokerChecker reports whether the broker connection is closed
type BrokerChecker interface {
	IsClosed() bool
}

// ReadyChecks holds the dependencies checked by Ready. A nil field is
// reported as disabled and does not affect readiness.
type ReadyChecks struct {
	Session SessionChecker
	DB      *sql.DB
	Broker  BrokerChecker
}

// Ready returns readiness check with dependencies
func Ready(checks ReadyChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		// Check dependencies in parallel
		sessionResult := make(chan HealthCheckResult, 1)
		dbResult := make(chan HealthCheckResult, 1)
		rmqResult := make(chan HealthCheckResult, 1)

		go func() {
			sessionResult <- checkSession(checks.Session)
		}()

		go func() {
			dbResult <- checkDatabase(ctx, checks.DB)
		}()

		go func() {
			rmqResult <- checkRabbitMQ(checks.Broker)
		}()

		results := map[string]HealthCheckResult{
			"slack":    <-sessionResult,
			"database": <-dbResult,
			"rabbitmq": <-rmqResult,
		}

		allHealthy := true
		for _, res := range results {
			if res.Status == "down" {
				allHealthy = false
			}
		}

		response := map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"checks":    results,
		}

		if allHealthy {
			response["status"] = "ready"
			writeJSON(w, http.StatusOK, response)
			return
		}
		response["status"] = "not_ready"
		writeJSON(w, http.StatusServiceUnavailable, response)
	}
}

func checkSession(s SessionChecker) HealthCheckResult {
	if s == nil {
		return HealthCheckResult{Status: "disabled"}
	}
	if !s.IsConnected() {
		return HealthCheckResult{
			Status: "down",
			Error:  "rtm session not connected",
		}
	}
	return HealthCheckResult{Status: "up"}
}

// checkDatabase verifies database connectivity
func checkDatabase(ctx context.Context, db *sql.DB) HealthCheckResult {
	if db == nil {
		return HealthCheckResult{Status: "disabled"}
	}

	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	stats := db.Stats()

	if err != nil {
		return HealthCheckResult{
			Status:    "down",
			LatencyMs: latency.Milliseconds(),
			Error:     err.Error(),
		}
	}

	return HealthCheckResult{
		Status:    "up",
		LatencyMs: latency.Milliseconds(),
		Metadata: map[string]interface{}{
			"connections_open":   stats.OpenConnections,
			"connections_in_use": stats.InUse,
			"connections_idle":   stats.Idle,
			"max_open":           stats.MaxOpenConnections,
		},
	}
}

// checkRabbitMQ verifies RabbitMQ connectivity
func checkRabbitMQ(rmq BrokerChecker) HealthCheckResult {
	if rmq == nil {
		return HealthCheckResult{Status: "disabled"}
	}
	if rmq.IsClosed() {
		return HealthCheckResult{
			Status: "down",
			Error:  "connection closed",
		}
	}
	return HealthCheckResult{Status: "up"}
}
