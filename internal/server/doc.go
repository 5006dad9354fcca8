// Package server implements the UDP collector for receiver observation
// records and the HTTP API endpoints. It handles datagram ingestion, ordered
// application of records to the session reconstructor, and provides
// monitoring/management endpoints.
package server
