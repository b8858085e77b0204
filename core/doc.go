// Package core contains the relay domain types, the ingestion pipeline and
// the contracts its collaborators implement. Adapters (stores, providers,
// transports) depend on this package; core never depends on them.
package core
