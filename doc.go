// Package backend provides the Plume event-reaction pipeline server.
//
// This module contains the server-side reactors that turn document change
// events into consistent, idempotent side effects:
//
//   - internal/events: change-event model, dispatcher, change-stream listener
//   - internal/moderation: AI moderation decision engine
//   - internal/classifier: verdict lattice and Gemini classification client
//   - internal/counters: like/comment/follow counter maintenance
//   - internal/auditlog: append-only per-post event history
//   - internal/notifications: deduplicated notification fan-out
//   - internal/docstore: document store abstraction (MongoDB + in-memory)
//   - internal/storage: photo object storage (S3)
//   - internal/idem: deterministic secondary document ids
//   - internal/models: data models shared across reactors
//
// See the individual package documentation for detailed reference.
package backend
