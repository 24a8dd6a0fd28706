// Package server exposes the websocket audio ingest endpoint and the HTTP
// API for health, session monitoring, bookings, and metrics.
package server
