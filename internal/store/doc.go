// Package store persists the last known message handle of every published
// section, one document per server.
//
// Drivers:
//   - file: one TOML document per server with a [message_ids] table
//   - sqlite: a message_ids table keyed by (server, section)
//   - redis: one hash per server
//
// A save is a full overwrite of the server's document; the last writer wins.
package store
