// Package bus implements the transport bus (spec.md §4.5, component C5):
// a duplex framed connection between device and host carrying
// protocol.TransportMessage frames over a websocket, with automatic
// reconnect/backoff on the client side.
package bus
