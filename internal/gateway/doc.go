// Package gateway speaks the terminal wire protocol over WebSocket.
//
// Terminals dial in, register with their device id, and exchange JSON
// frames of the shape {method, params, req_id}. Every inbound frame is
// answered with either a success envelope (result 0, errMsg "Success") or
// an error envelope carrying a protocol error code. Protocol errors never
// close the connection; the terminal decides when to hang up.
//
// The package owns three pieces:
//
//   - Registry: the live deviceID -> Conn map, at most one connection per
//     device. A re-registration replaces the old entry; the replaced
//     connection's late close must not evict its successor, so removal is
//     conditional on connection identity.
//   - Handler: the HTTP upgrade endpoint and per-connection read loop
//     implementing registerDevice, heartBeat, uploadRecords and the person
//     sync acknowledgements.
//   - Issuer: direct fire-and-forget commands (door open, relay pulse)
//     that bypass the job queue for latency-sensitive actions.
package gateway
