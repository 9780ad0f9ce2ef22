// Package audit implements async event dispatching for login, registration,
// and session events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: audit record with timestamp, type, user, IP, and metadata.
//
// The dispatcher owns buffering and delivery. It does not decide which events
// to emit; the Engine and flow functions do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import sessionauth or any sibling internal package.
//   - Record passwords, hashes, or session tokens.
package audit
