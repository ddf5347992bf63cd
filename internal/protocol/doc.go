// Package protocol implements the §3 data model of the nanoclaw wire
// protocol: the envelope carried by every frame, the TransportMessage
// kinds, and the payload shapes (DeviceStatus, DeviceCommand,
// TouchEventPayload, ProtocolError). The wire format is JSON; CBOR is
// used only by the ambient protocol-log side channel (see internal/log).
package protocol
