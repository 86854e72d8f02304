// Package codec is the serialization layer between a verified wire frame
// and a fixcore/message.FixMessage.
//
// The interface shape — a small Encode/Decode/Type strategy plus a factory
// — is kept directly from the teacher's codec package (pluggable
// JSON/Binary codecs for RPCMessage). Here it serves two different needs
// instead of "fast vs. human-readable": WireCodec implements spec.md §4.2's
// byte-exact FIX tag=value framing, and AuditCodec serializes a FixMessage
// to JSON for the MessageStore's audit records (spec.md §7) — the same
// "pick a format for the job" idea, applied to FIX instead of RPC.
package codec

import "fixcore/message"

// Type identifies which serialization a Codec implements.
type Type byte

const (
	TypeWire  Type = 0 // FIX 4.4 tag=value SOH framing
	TypeAudit Type = 1 // JSON, for durable audit records
)

// Codec converts between a FixMessage and its serialized form.
type Codec interface {
	Encode(m *message.FixMessage) ([]byte, error)
	Decode(data []byte) (*message.FixMessage, error)
	Type() Type
}

// Get is the factory function mirroring the teacher's GetCodec.
func Get(t Type) Codec {
	if t == TypeAudit {
		return &AuditCodec{}
	}
	return &WireCodec{}
}
