package status

// Status is the internal shipment status persisted on every order item record.
type Status string

// Internal statuses
const (
	Pending   Status = "Pending"
	Unshipped Status = "Unshipped"
	Shipped   Status = "Shipped"
	Canceled  Status = "Canceled"
	Unknown   Status = "Unknown"
)

func (s Status) String() string { return string(s) }

// DefaultTable maps the Orders API OrderStatus vocabulary to internal statuses.
func DefaultTable() map[string]Status {
	return map[string]Status{
		"PendingAvailability": Pending,
		"Pending":             Pending,
		"Unshipped":           Unshipped,
		"PartiallyShipped":    Unshipped,
		"Shipped":             Shipped,
		"InvoiceUnconfirmed":  Shipped,
		"Canceled":            Canceled,
		"Unfulfillable":       Canceled,
	}
}

// Mapper translates marketplace statuses. It is safe for concurrent use; the
// table is copied on construction and never mutated afterwards.
type Mapper struct {
	table map[string]Status
}

// NewMapper builds a Mapper over a copy of table.
func NewMapper(table map[string]Status) *Mapper {
	t := make(map[string]Status, len(table))
	for k, v := range table {
		t[k] = v
	}
	return &Mapper{table: t}
}

// Lookup returns the internal status and whether the marketplace value was known.
func (m *Mapper) Lookup(external string) (Status, bool) {
	s, ok := m.table[external]
	if !ok {
		return Unknown, false
	}
	return s, true
}

// Map returns Unknown for values outside the table.
func (m *Mapper) Map(external string) Status {
	s, _ := m.Lookup(external)
	return s
}

// MapAll maps and de-duplicates a list of marketplace statuses, keeping the
// first-seen order. Unknown results are dropped.
func (m *Mapper) MapAll(external []string) []Status {
	seen := make(map[Status]struct{}, len(external))
	out := make([]Status, 0, len(external))
	for _, e := range external {
		s, ok := m.Lookup(e)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Rank orders statuses along the fulfilment lifecycle. Shipped and Canceled
// are both terminal. Unknown has no rank and returns -1.
func Rank(s Status) int {
	switch s {
	case Pending:
		return 0
	case Unshipped:
		return 1
	case Shipped, Canceled:
		return 2
	default:
		return -1
	}
}

// IsRegression reports whether moving from current to next would go backwards
// in the lifecycle.
func IsRegression(current, next Status) bool {
	rc, rn := Rank(current), Rank(next)
	if rc < 0 || rn < 0 {
		return false
	}
	return rn < rc
}
