// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and
// conversions between domain models and lightweight wire representations.
// The server embeds the daemon while the client decorates calls with dial
// timeouts so CLI commands fail fast when the daemon is offline. Handler
// errors carry a stable code prefix that ErrorCode recovers on the client
// side, since sentinel errors do not survive the wire.
//
// Reuse these types when adding new RPC endpoints to keep the protocol
// stable and compatible with existing command implementations.
package ipc
