package codec

import (
	"bytes"
	"fmt"
	"strconv"

	"fixcore/frame"
	"fixcore/message"
)

const soh = 0x01

// WireCodec implements spec.md §4.2: decode a verified frame into a field
// map, encode a field map into a wire frame with correct BodyLength and
// CheckSum.
type WireCodec struct{}

func (c *WireCodec) Type() Type { return TypeWire }

// Decode splits a verified frame by SOH, then splits each element at its
// first '='. Tags are parsed as integers; duplicate tags keep the last
// occurrence, per spec.md §4.2 (repeating groups are out of scope and pass
// through as raw, individually-tagged fields).
func (c *WireCodec) Decode(data []byte) (*message.FixMessage, error) {
	m := message.New()
	parts := bytes.Split(bytes.TrimSuffix(data, []byte{soh}), []byte{soh})
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		eq := bytes.IndexByte(p, '=')
		if eq < 0 {
			return nil, fmt.Errorf("codec: field %q has no '='", p)
		}
		tag, err := strconv.Atoi(string(p[:eq]))
		if err != nil {
			return nil, fmt.Errorf("codec: invalid tag in field %q: %w", p, err)
		}
		value := make([]byte, len(p)-eq-1)
		copy(value, p[eq+1:])
		m.SetBytes(tag, value)
	}
	return m, nil
}

// Encode serializes m in canonical order: BeginString, BodyLength,
// MsgType, then the remaining body fields in insertion order, then
// CheckSum. BodyLength is computed after the body is materialized;
// CheckSum is the mod-256 sum of every prior byte, rendered as three
// zero-padded ASCII digits, per spec.md §4.2 and §6.
func (c *WireCodec) Encode(m *message.FixMessage) ([]byte, error) {
	msgType, ok := m.Get(message.TagMsgType)
	if !ok {
		return nil, fmt.Errorf("codec: message has no MsgType (tag 35)")
	}

	var body bytes.Buffer
	writeField(&body, message.TagMsgType, msgType)
	for _, tag := range m.Tags() {
		switch tag {
		case message.TagBeginString, message.TagBodyLength, message.TagMsgType, message.TagCheckSum:
			continue
		default:
			v, _ := m.Get(tag)
			writeField(&body, tag, v)
		}
	}

	var out bytes.Buffer
	writeField(&out, message.TagBeginString, message.BeginString)
	writeField(&out, message.TagBodyLength, strconv.Itoa(body.Len()))
	out.Write(body.Bytes())

	sum := frame.ChecksumOf(out.Bytes())
	out.WriteString(fmt.Sprintf("10=%03d\x01", sum))

	return out.Bytes(), nil
}

func writeField(buf *bytes.Buffer, tag int, value string) {
	buf.WriteString(strconv.Itoa(tag))
	buf.WriteByte('=')
	buf.WriteString(value)
	buf.WriteByte(soh)
}
