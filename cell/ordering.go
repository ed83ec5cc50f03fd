package cell

import "fmt"

// Ordering is the memory-ordering strength requested for a single access
// to a cell. Orderings are listed from weakest to strongest.
//
// sync/atomic only provides sequentially consistent operations, so every
// ordering is widened to Volatile when executed. A requested ordering is
// never weakened: code written against Acquire/Release stays correct, it
// just pays for the stronger fence.
type Ordering uint8

const (
	// Plain guarantees only that the access itself is not torn.
	Plain Ordering = iota

	// Opaque adds per-cell program order consistency.
	Opaque

	// Acquire is valid for loads only. It pairs with the Release store
	// whose value it observes.
	Acquire

	// Release is valid for stores only. All writes before it are visible
	// to a goroutine that acquire-loads the stored value.
	Release

	// Volatile is acquire+release with a total order among all volatile
	// accesses of the cell.
	Volatile
)

var orderingNames = [...]string{
	Plain:    "plain",
	Opaque:   "opaque",
	Acquire:  "acquire",
	Release:  "release",
	Volatile: "volatile",
}

func (o Ordering) String() string {
	if int(o) < len(orderingNames) {
		return orderingNames[o]
	}
	return fmt.Sprintf("Ordering(%d)", uint8(o))
}

// ParseOrdering returns the Ordering named by s.
func ParseOrdering(s string) (Ordering, error) {
	for i, name := range orderingNames {
		if name == s {
			return Ordering(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOrdering, s)
}

// MarshalText implements encoding.TextMarshaler.
func (o Ordering) MarshalText() ([]byte, error) {
	if int(o) >= len(orderingNames) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOrdering, uint8(o))
	}
	return []byte(orderingNames[o]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Ordering) UnmarshalText(b []byte) error {
	v, err := ParseOrdering(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// CanLoad reports whether o is a valid ordering for a load.
func (o Ordering) CanLoad() bool {
	return o == Plain || o == Opaque || o == Acquire || o == Volatile
}

// CanStore reports whether o is a valid ordering for a store.
func (o Ordering) CanStore() bool {
	return o == Plain || o == Opaque || o == Release || o == Volatile
}

// validForCAS reports whether o may be used for a read-modify-write.
// Every tier is meaningful there: acquire applies to the read half and
// release to the write half.
func (o Ordering) validForCAS() bool {
	return o <= Volatile
}

func mustLoad(o Ordering) {
	if !o.CanLoad() {
		panic(fmt.Errorf("%w: %s load", ErrInvalidOrdering, o))
	}
}

func mustStore(o Ordering) {
	if !o.CanStore() {
		panic(fmt.Errorf("%w: %s store", ErrInvalidOrdering, o))
	}
}

func mustCAS(o Ordering) {
	if !o.validForCAS() {
		panic(fmt.Errorf("%w: %s compare-and-set", ErrInvalidOrdering, o))
	}
}
