package protocol_test

import (
	"testing"

	"github.com/nanoclaw/nanoclaw/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestDeriveSigningKeyIsDeterministicAndFixedLength(t *testing.T) {
	k1, err := protocol.DeriveSigningKey([]byte("shared-secret"), nil)
	require.NoError(t, err)
	k2, err := protocol.DeriveSigningKey([]byte("shared-secret"), nil)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
	require.Len(t, k1, 32)
}

func TestSignSetsSignatureAndIsStableForSameContent(t *testing.T) {
	key, err := protocol.DeriveSigningKey([]byte("shared-secret"), nil)
	require.NoError(t, err)

	msg := &protocol.TransportMessage{
		Envelope: protocol.Envelope{DeviceID: "dev-1", Source: "dev-1", MessageID: "m-1"},
		Kind:     protocol.KindHeartbeat,
	}
	msg.Sign(key)
	require.NotNil(t, msg.Signature)

	other := &protocol.TransportMessage{
		Envelope: protocol.Envelope{DeviceID: "dev-1", Source: "dev-1", MessageID: "m-1"},
		Kind:     protocol.KindHeartbeat,
	}
	other.Sign(key)
	require.Equal(t, *msg.Signature, *other.Signature)
}

func TestSignDiffersWithDifferentKeys(t *testing.T) {
	keyA, _ := protocol.DeriveSigningKey([]byte("a"), nil)
	keyB, _ := protocol.DeriveSigningKey([]byte("b"), nil)

	msg := &protocol.TransportMessage{Envelope: protocol.Envelope{MessageID: "m-1"}, Kind: protocol.KindHeartbeat}
	msg.Sign(keyA)
	sigA := *msg.Signature

	msg.Sign(keyB)
	require.NotEqual(t, sigA, *msg.Signature)
}
