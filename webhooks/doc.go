// Package webhooks verifies signed inbound deliveries before they reach the
// ingestion pipeline.
package webhooks
