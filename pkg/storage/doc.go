// Package storage provides the durable key-value JSON blob store used to
// persist gateway state (conversations, request statistics) across process
// restarts.
//
// Two backends are available: SQLite (default, a single documents table)
// and Bolt (a single bucket). Both store one JSON document per key, loaded
// and saved as a whole; the in-memory state owned by the managers remains
// authoritative and a lagging durable copy is never fatal.
package storage
