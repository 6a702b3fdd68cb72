package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/store"
)

// IndexMaintainer owns the active-policy set and the flight→policy-ids
// index. Both are stored as ordered id sequences; absence reads as an
// empty sequence.
type IndexMaintainer struct {
	kv store.Store
}

func NewIndexMaintainer(kv store.Store) *IndexMaintainer {
	return &IndexMaintainer{kv: kv}
}

// AddActive appends an id to the active-policy sequence.
func (m *IndexMaintainer) AddActive(ctx context.Context, id uint64) error {
	ids, err := m.readIDs(ctx, keyActivePolicies)
	if err != nil {
		return err
	}
	return m.writeIDs(ctx, keyActivePolicies, append(ids, id))
}

// RemoveActive removes the first occurrence of id from the active
// sequence. A missing id is a no-op.
func (m *IndexMaintainer) RemoveActive(ctx context.Context, id uint64) error {
	ids, err := m.readIDs(ctx, keyActivePolicies)
	if err != nil {
		return err
	}
	for i, existing := range ids {
		if existing == id {
			return m.writeIDs(ctx, keyActivePolicies, append(ids[:i], ids[i+1:]...))
		}
	}
	return nil
}

// ListActive returns the ids of all unresolved policies, in creation
// order. Never fails on absence.
func (m *IndexMaintainer) ListActive(ctx context.Context) ([]uint64, error) {
	return m.readIDs(ctx, keyActivePolicies)
}

// AppendFlightPolicy records a policy against its flight, preserving
// insertion order.
func (m *IndexMaintainer) AppendFlightPolicy(ctx context.Context, flightID string, id uint64) error {
	key := flightKey(flightID)
	ids, err := m.readIDs(ctx, key)
	if err != nil {
		return err
	}
	return m.writeIDs(ctx, key, append(ids, id))
}

// ListForFlight returns the ids indexed against a flight, empty when
// the flight is unknown.
func (m *IndexMaintainer) ListForFlight(ctx context.Context, flightID string) ([]uint64, error) {
	return m.readIDs(ctx, flightKey(flightID))
}

// HasFlight reports whether any policies are indexed for the flight.
func (m *IndexMaintainer) HasFlight(ctx context.Context, flightID string) (bool, error) {
	return m.kv.Has(ctx, flightKey(flightID))
}

// ClearFlight deletes the flight's index entry.
func (m *IndexMaintainer) ClearFlight(ctx context.Context, flightID string) error {
	return m.kv.Remove(ctx, flightKey(flightID))
}

func (m *IndexMaintainer) readIDs(ctx context.Context, key string) ([]uint64, error) {
	val, ok, err := m.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []uint64{}, nil
	}

	var ids []uint64
	if err := json.Unmarshal(val, &ids); err != nil {
		return nil, fmt.Errorf("decode id sequence %s: %w", key, err)
	}
	return ids, nil
}

func (m *IndexMaintainer) writeIDs(ctx context.Context, key string, ids []uint64) error {
	val, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode id sequence %s: %w", key, err)
	}
	return m.kv.Set(ctx, key, val)
}
