package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

// signingInfo is the HKDF "info" parameter, domain-separating signing
// keys derived here from any other use of the shared secret.
var signingInfo = []byte("nanoclaw-frame-signature")

// DeriveSigningKey derives a 32-byte HMAC key from a shared secret
// (e.g. the pairing secret exchanged out of band between device and
// host). salt may be nil.
func DeriveSigningKey(secret, salt []byte) ([]byte, error) {
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, signingInfo), key); err != nil {
		return nil, err
	}
	return key, nil
}

// canonicalBytes renders the fields a signature covers in a fixed
// order, independent of JSON field ordering.
func (m *TransportMessage) canonicalBytes() []byte {
	buf := make([]byte, 0, 64+len(m.Payload))
	buf = append(buf, m.Source...)
	buf = append(buf, '|')
	buf = append(buf, m.DeviceID...)
	buf = append(buf, '|')
	buf = append(buf, m.MessageID...)
	buf = append(buf, '|')
	buf = append(buf, string(m.Kind)...)
	buf = append(buf, '|')
	buf = append(buf, m.Payload...)
	return buf
}

// Sign computes an HMAC-SHA256 over the envelope identity fields and
// payload, hex-encodes it, and sets m.Signature. The core never
// verifies this signature (spec.md Non-goals: "signature/nonce fields
// are carried but not verified"); it exists for a future trust layer
// to consume.
func (m *TransportMessage) Sign(key []byte) {
	mac := hmac.New(sha256.New, key)
	mac.Write(m.canonicalBytes())
	sig := hex.EncodeToString(mac.Sum(nil))
	m.Signature = &sig
}
