package threat

// ClearKind selects which threats a clear operation removes.
type ClearKind int

const (
	ClearAll ClearKind = iota
	ClearFirst
	ClearLast
	ClearByType
)

// Clear describes one typed clear operation. N applies to ClearFirst and
// ClearLast; Type applies to ClearByType.
type Clear struct {
	Kind ClearKind  `msgpack:"kind"`
	N    int        `msgpack:"n"`
	Type DamageType `msgpack:"typ"`
}

// Apply removes the selected threats and returns exactly the removed set
// in original order. Survivors keep their relative order.
//
// Postcondition: ClearAll empties the queue; ClearFirst/ClearLast remove
// min(N, len) from the respective end; ClearByType removes only matching
// entries.
func (q *Queue) Apply(c Clear) []Threat {
	switch c.Kind {
	case ClearAll:
		removed := q.Threats
		q.Threats = nil
		return removed
	case ClearFirst:
		n := c.N
		if n > len(q.Threats) {
			n = len(q.Threats)
		}
		if n <= 0 {
			return nil
		}
		removed := make([]Threat, n)
		copy(removed, q.Threats[:n])
		q.Threats = append(q.Threats[:0], q.Threats[n:]...)
		return removed
	case ClearLast:
		n := c.N
		if n > len(q.Threats) {
			n = len(q.Threats)
		}
		if n <= 0 {
			return nil
		}
		cut := len(q.Threats) - n
		removed := make([]Threat, n)
		copy(removed, q.Threats[cut:])
		q.Threats = q.Threats[:cut]
		return removed
	case ClearByType:
		var removed []Threat
		kept := q.Threats[:0]
		for _, t := range q.Threats {
			if t.Type == c.Type {
				removed = append(removed, t)
			} else {
				kept = append(kept, t)
			}
		}
		q.Threats = kept
		return removed
	default:
		return nil
	}
}
