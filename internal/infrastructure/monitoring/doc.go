/*
Package monitoring provides Prometheus metrics for the broker.

# Overview

Metrics are registered on a dedicated registry rather than the global
default, so several brokers (or several tests) can run in one process.

# Metrics

  - ptyd_sessions_active, ptyd_sessions_total, ptyd_sessions_rejected_total
  - ptyd_spawn_failures_total, ptyd_session_duration_seconds
  - ptyd_frames_total{direction,kind}, ptyd_frame_bytes_total{direction}
  - ptyd_port_fallbacks_total
  - ptyd_http_requests_total, ptyd_http_request_duration_seconds
  - ptyd_uptime_seconds, plus Go runtime and process collectors

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
