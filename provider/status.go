package provider

// RawStatusKey is the Extra key under which an unrecognized provider status
// token is preserved for diagnosis.
const RawStatusKey = "rawStatus"

// StatusMapper normalizes one provider's proprietary status vocabulary onto
// the shared PaymentStatus set. It is a pure lookup: stateless and safe for
// concurrent use.
type StatusMapper struct {
	table map[string]PaymentStatus
}

// NewStatusMapper builds a mapper from a provider's status table.
func NewStatusMapper(table map[string]PaymentStatus) *StatusMapper {
	copied := make(map[string]PaymentStatus, len(table))
	for k, v := range table {
		copied[k] = v
	}
	return &StatusMapper{table: copied}
}

// Map translates a raw provider token. The mapping is total: an unknown token
// comes back as failed with known=false so the caller can preserve the raw
// value instead of dropping it.
func (m *StatusMapper) Map(raw string) (status PaymentStatus, known bool) {
	if s, ok := m.table[raw]; ok {
		return s, true
	}
	return StatusFailed, false
}

// Apply maps raw onto result.Status, stashing an unrecognized token in
// result.Extra under RawStatusKey.
func (m *StatusMapper) Apply(result *PaymentResult, raw string) {
	status, known := m.Map(raw)
	result.Status = status
	if !known {
		result.WithExtra(RawStatusKey, raw)
	}
}
