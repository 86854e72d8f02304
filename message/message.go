// Package message defines the FIX message structure exchanged between a
// counterparty and the core. FixMessage is the "envelope" every frame is
// decoded into and every reply is assembled from before it reaches the
// codec layer.
package message

import (
	"fmt"
	"strconv"
	"time"
)

// Well-known tag numbers from spec.md §6's "Minimum recognized fields" table.
const (
	TagBeginSeqNo          = 7
	TagBeginString         = 8
	TagBodyLength          = 9
	TagCheckSum            = 10
	TagClOrdID             = 11
	TagEndSeqNo            = 16
	TagMsgSeqNum           = 34
	TagMsgType             = 35
	TagNewSeqNo            = 36
	TagOrderQty            = 38
	TagOrdType             = 40
	TagPossDupFlag         = 43
	TagPrice               = 44
	TagRefSeqNum           = 45
	TagSenderCompID        = 49
	TagSendingTime         = 52
	TagSide                = 54
	TagSymbol              = 55
	TagTargetCompID        = 56
	TagText                = 58
	TagEncryptMethod       = 98
	TagHeartBtInt          = 108
	TagTestReqID           = 112
	TagOrigSendingTime     = 122
	TagGapFillFlag         = 123
	TagResetSeqNumFlag     = 141
	TagRefTagID            = 371
	TagRefMsgType          = 372
	TagSessionRejectReason = 373
)

// MsgType values handled at the session level (spec.md §6).
const (
	MsgTypeLogon         = "A"
	MsgTypeHeartbeat     = "0"
	MsgTypeTestRequest   = "1"
	MsgTypeResendRequest = "2"
	MsgTypeReject        = "3"
	MsgTypeSequenceReset = "4"
	MsgTypeLogout        = "5"
	MsgTypeNewOrderSingle = "D"
	MsgTypeExecutionReport = "8"
)

// BeginString is the only protocol version this core accepts.
const BeginString = "FIX.4.4"

// wireTimeLayout is spec.md §6's second-precision UTC wire format.
const wireTimeLayout = "20060102-15:04:05"

// field is one decoded tag/value pair, kept in the order it was parsed so
// re-encoding an unmodified message reproduces its original field order
// (the round-trip invariant in spec.md §8).
type field struct {
	tag   int
	value []byte
}

// FixMessage is an ordered multimap of (tag → value) pairs. Duplicate tags
// are permitted; for non-repeating-group fields, Get returns the last
// occurrence, matching spec.md §4.2.
type FixMessage struct {
	fields []field
	index  map[int]int // tag -> index of last occurrence in fields
}

// New returns an empty message ready to be populated with Set calls in the
// order they should appear on the wire.
func New() *FixMessage {
	return &FixMessage{index: make(map[int]int)}
}

// Set appends or overwrites a tag's value. Overwriting an existing tag
// updates the index but keeps the field's original position, matching
// "the last occurrence wins" without disturbing unrelated field order.
func (m *FixMessage) Set(tag int, value string) {
	m.SetBytes(tag, []byte(value))
}

// SetBytes is Set for callers that already hold the value as bytes.
func (m *FixMessage) SetBytes(tag int, value []byte) {
	if i, ok := m.index[tag]; ok {
		m.fields[i].value = value
		return
	}
	m.fields = append(m.fields, field{tag: tag, value: value})
	m.index[tag] = len(m.fields) - 1
}

// SetInt sets a tag from an integer value.
func (m *FixMessage) SetInt(tag int, value int) {
	m.Set(tag, strconv.Itoa(value))
}

// Get returns a tag's value and whether it was present.
func (m *FixMessage) Get(tag int) (string, bool) {
	v, ok := m.GetBytes(tag)
	if !ok {
		return "", false
	}
	return string(v), true
}

// GetBytes is Get without the string conversion, for hot paths.
func (m *FixMessage) GetBytes(tag int) ([]byte, bool) {
	i, ok := m.index[tag]
	if !ok {
		return nil, false
	}
	return m.fields[i].value, true
}

// GetInt returns a tag's value parsed as an integer.
func (m *FixMessage) GetInt(tag int) (int, error) {
	v, ok := m.Get(tag)
	if !ok {
		return 0, fmt.Errorf("tag %d not present", tag)
	}
	return strconv.Atoi(v)
}

// GetUint32 returns a tag's value parsed as a uint32 (sequence numbers).
func (m *FixMessage) GetUint32(tag int) (uint32, error) {
	v, ok := m.Get(tag)
	if !ok {
		return 0, fmt.Errorf("tag %d not present", tag)
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// SetBool sets a tag to "Y" or "N".
func (m *FixMessage) SetBool(tag int, value bool) {
	if value {
		m.Set(tag, "Y")
	} else {
		m.Set(tag, "N")
	}
}

// GetBool returns a tag's Y/N value as a bool. Absent tags are false.
func (m *FixMessage) GetBool(tag int) bool {
	v, ok := m.Get(tag)
	return ok && len(v) > 0 && (v[0] == 'Y' || v[0] == 'y')
}

// Has reports whether tag is present.
func (m *FixMessage) Has(tag int) bool {
	_, ok := m.index[tag]
	return ok
}

// MsgType is a convenience accessor for tag 35.
func (m *FixMessage) MsgType() string {
	v, _ := m.Get(TagMsgType)
	return v
}

// MsgSeqNum is a convenience accessor for tag 34.
func (m *FixMessage) MsgSeqNum() (uint32, error) {
	return m.GetUint32(TagMsgSeqNum)
}

// SenderCompID is a convenience accessor for tag 49.
func (m *FixMessage) SenderCompID() string {
	v, _ := m.Get(TagSenderCompID)
	return v
}

// TargetCompID is a convenience accessor for tag 56.
func (m *FixMessage) TargetCompID() string {
	v, _ := m.Get(TagTargetCompID)
	return v
}

// SendingTime parses tag 52 using the wire's second-precision UTC layout.
func (m *FixMessage) SendingTime() (time.Time, error) {
	v, ok := m.Get(TagSendingTime)
	if !ok {
		return time.Time{}, fmt.Errorf("tag %d not present", TagSendingTime)
	}
	return time.Parse(wireTimeLayout, v)
}

// SetSendingTime stamps tag 52 with t formatted per spec.md §6.
func (m *FixMessage) SetSendingTime(t time.Time) {
	m.Set(TagSendingTime, FormatWireTime(t))
}

// FormatWireTime renders t as FIX 4.4's YYYYMMDD-HH:MM:SS UTC wire format.
func FormatWireTime(t time.Time) string {
	return t.UTC().Format(wireTimeLayout)
}

// ParseWireTime parses FIX 4.4's YYYYMMDD-HH:MM:SS UTC wire format.
func ParseWireTime(s string) (time.Time, error) {
	return time.Parse(wireTimeLayout, s)
}

// Tags returns the tags in wire order, for codecs that need to iterate
// the message deterministically.
func (m *FixMessage) Tags() []int {
	tags := make([]int, len(m.fields))
	for i, f := range m.fields {
		tags[i] = f.tag
	}
	return tags
}

// Clone returns a deep-enough copy safe to mutate independently (values are
// not aliased across messages produced by the codec from a shared frame).
func (m *FixMessage) Clone() *FixMessage {
	c := New()
	for _, f := range m.fields {
		v := make([]byte, len(f.value))
		copy(v, f.value)
		c.fields = append(c.fields, field{tag: f.tag, value: v})
		c.index[f.tag] = len(c.fields) - 1
	}
	return c
}

// Equal reports whether m and other carry the same tag set with identical
// values, irrespective of field order — the round-trip law in spec.md §8
// is defined on tag-set equality, not positional equality.
func (m *FixMessage) Equal(other *FixMessage) bool {
	if len(m.index) != len(other.index) {
		return false
	}
	for tag, i := range m.index {
		j, ok := other.index[tag]
		if !ok {
			return false
		}
		if string(m.fields[i].value) != string(other.fields[j].value) {
			return false
		}
	}
	return true
}
