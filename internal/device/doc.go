// Package device manages the access-control terminal fleet.
//
// A Device row is created or refreshed whenever a terminal registers or
// heartbeats through the gateway; the core never deletes devices (full
// lifecycle belongs to the admin application). Online state is derived,
// not stored: a device is online while its last heartbeat is younger than
// the configured grace window.
package device
