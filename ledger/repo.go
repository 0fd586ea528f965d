package ledger

import (
	"fmt"
)

// Map is a typed (namespace, id) -> value repository.
type Map[K any, V any] struct {
	tier   Tier
	ns     Namespace
	prefix []byte
	key    func(K) []byte
}

// NewMap declares a repository. Call it from a package-level var so
// namespace collisions surface at init.
func NewMap[K any, V any](t Tier, ns Namespace, key func(K) []byte) Map[K, V] {
	return Map[K, V]{
		tier:   t,
		ns:     ns,
		prefix: register(t, ns),
		key:    key,
	}
}

func (m Map[K, V]) fullKey(k K) []byte {
	id := m.key(k)
	out := make([]byte, 0, len(m.prefix)+len(id))
	out = append(out, m.prefix...)
	return append(out, id...)
}

// Get loads the value for k. found is false if there is none.
func (m Map[K, V]) Get(l *Ledger, k K) (v V, found bool, err error) {
	found, err = get(l.tier(m.tier), m.fullKey(k), &v)
	if err != nil {
		return v, false, fmt.Errorf("ledger: get %s: %w", m.ns, err)
	}
	return v, found, nil
}

// Has reports whether k is present.
func (m Map[K, V]) Has(l *Ledger, k K) (bool, error) {
	ok, err := l.tier(m.tier).Has(m.fullKey(k))
	if err != nil {
		return false, fmt.Errorf("ledger: has %s: %w", m.ns, err)
	}
	return ok, nil
}

// Put stores v under k.
func (m Map[K, V]) Put(l *Ledger, k K, v V) error {
	if err := put(l.tier(m.tier), m.fullKey(k), v); err != nil {
		return fmt.Errorf("ledger: put %s: %w", m.ns, err)
	}
	return nil
}

// Delete removes k. Deleting a missing key is a no-op.
func (m Map[K, V]) Delete(l *Ledger, k K) error {
	if err := l.tier(m.tier).Delete(m.fullKey(k)); err != nil {
		return fmt.Errorf("ledger: delete %s: %w", m.ns, err)
	}
	return nil
}

// Value is a typed singleton.
type Value[V any] struct {
	tier Tier
	ns   Namespace
	key  []byte
}

// NewValue declares a singleton.
func NewValue[V any](t Tier, ns Namespace) Value[V] {
	return Value[V]{
		tier: t,
		ns:   ns,
		key:  register(t, ns),
	}
}

// Get loads the singleton. found is false if it was never set.
func (s Value[V]) Get(l *Ledger) (v V, found bool, err error) {
	found, err = get(l.tier(s.tier), s.key, &v)
	if err != nil {
		return v, false, fmt.Errorf("ledger: get %s: %w", s.ns, err)
	}
	return v, found, nil
}

// GetOr loads the singleton, returning def if it was never set. Only use it for
// values whose zero state is meaningful, such as counters and flags.
func (s Value[V]) GetOr(l *Ledger, def V) (V, error) {
	v, found, err := s.Get(l)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	return v, nil
}

// Has reports whether the singleton is set.
func (s Value[V]) Has(l *Ledger) (bool, error) {
	ok, err := l.tier(s.tier).Has(s.key)
	if err != nil {
		return false, fmt.Errorf("ledger: has %s: %w", s.ns, err)
	}
	return ok, nil
}

// Put sets the singleton.
func (s Value[V]) Put(l *Ledger, v V) error {
	if err := put(l.tier(s.tier), s.key, v); err != nil {
		return fmt.Errorf("ledger: put %s: %w", s.ns, err)
	}
	return nil
}

// Delete clears the singleton.
func (s Value[V]) Delete(l *Ledger) error {
	if err := l.tier(s.tier).Delete(s.key); err != nil {
		return fmt.Errorf("ledger: delete %s: %w", s.ns, err)
	}
	return nil
}

// Counter is a monotonically increasing uint64 singleton.
type Counter struct {
	v Value[uint64]
}

// NewCounter declares a counter in the instance tier.
func NewCounter(ns Namespace) Counter {
	return Counter{v: NewValue[uint64](Instance, ns)}
}

// Current returns the last issued value, 0 if none.
func (c Counter) Current(l *Ledger) (uint64, error) {
	return c.v.GetOr(l, 0)
}

// Next issues and persists the next value, starting at 1.
func (c Counter) Next(l *Ledger) (uint64, error) {
	cur, err := c.Current(l)
	if err != nil {
		return 0, err
	}
	cur++
	if err := c.v.Put(l, cur); err != nil {
		return 0, err
	}
	return cur, nil
}
