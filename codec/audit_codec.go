package codec

import (
	"encoding/json"
	"fmt"

	"fixcore/message"
)

// auditRecord is the JSON shape a FixMessage collapses to for durable audit
// records (spec.md §7) — a flat tag->value map is sufficient for an audit
// trail; it does not need to round-trip back into wire bytes.
type auditRecord struct {
	Fields map[string]string `json:"fields"`
}

// AuditCodec serializes a FixMessage to/from JSON, directly adapted from
// the teacher's JSONCodec (encoding/json, nothing fancier) — see
// DESIGN.md's codec entry.
type AuditCodec struct{}

func (c *AuditCodec) Type() Type { return TypeAudit }

func (c *AuditCodec) Encode(m *message.FixMessage) ([]byte, error) {
	rec := auditRecord{Fields: make(map[string]string)}
	for _, tag := range m.Tags() {
		v, _ := m.Get(tag)
		rec.Fields[fmt.Sprintf("%d", tag)] = v
	}
	return json.Marshal(rec)
}

func (c *AuditCodec) Decode(data []byte) (*message.FixMessage, error) {
	var rec auditRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	m := message.New()
	for k, v := range rec.Fields {
		var tag int
		if _, err := fmt.Sscanf(k, "%d", &tag); err != nil {
			return nil, fmt.Errorf("codec: invalid audit tag key %q: %w", k, err)
		}
		m.Set(tag, v)
	}
	return m, nil
}
