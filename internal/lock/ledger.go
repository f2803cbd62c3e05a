package lock

// Category is an independent ordering domain for push events.
type Category string

const (
	CategoryBattery      Category = "battery"
	CategoryLockState    Category = "lockState"
	CategoryDoorState    Category = "doorState"
	CategorySystemStatus Category = "systemStatus"
	CategoryDoorbell     Category = "doorbell"
)

// Categories lists every ledger category in a stable order.
var Categories = []Category{
	CategoryBattery,
	CategoryLockState,
	CategoryDoorState,
	CategorySystemStatus,
	CategoryDoorbell,
}

// Ledger holds the last accepted vendor timestamp per category.
// Timestamps come from the vendor clock and are not comparable across categories.
type Ledger map[Category]int64

// NewLedger returns an empty ledger.
func NewLedger() Ledger {
	return make(Ledger, len(Categories))
}

// Admit applies the ordering gate. An event without a timestamp is always admitted and leaves
// the ledger untouched; otherwise the timestamp must be strictly newer than the stored one.
func (l Ledger) Admit(c Category, ts *int64) bool {
	if ts == nil {
		return true
	}
	if *ts <= l[c] {
		return false
	}
	l[c] = *ts
	return true
}

// Clone copies the ledger.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}
