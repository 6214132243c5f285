package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smukkama/env-monitor/internal/cache"
	"github.com/smukkama/env-monitor/internal/protocol"
)

// BreachKeyPrefix namespaces tracker state inside a shared store
const BreachKeyPrefix = "breach_state:"

// ErrKeyspaceOverlap is returned when a cache prefix and the tracker's keys
// would share a keyspace
var ErrKeyspaceOverlap = errors.New("cache prefix overlaps breach tracker keys")

// CheckKeyspace verifies that a cache using cachePrefix on the same store
// can neither clear tracker state nor have its entries pruned by Track.
func CheckKeyspace(cachePrefix string) error {
	if strings.HasPrefix(BreachKeyPrefix, cachePrefix) || strings.HasPrefix(cachePrefix, BreachKeyPrefix) {
		return fmt.Errorf("%w: %q", ErrKeyspaceOverlap, cachePrefix)
	}
	return nil
}

// BreachState tracks one ongoing breach across evaluation passes
type BreachState struct {
	FirstObserved time.Time `json:"first_observed"`
	LastObserved  time.Time `json:"last_observed"`
	LastValue     float64   `json:"last_value"`
	Passes        int       `json:"passes"`
}

// BreachTracker remembers breaches keyed by (city, metric, severity) and
// annotates each event with when the condition was first and last seen.
// Events still re-fire every pass; the tracker only adds history.
type BreachTracker struct {
	store cache.Store
}

// NewBreachTracker creates a tracker over store (Redis in production). When
// the store is shared with a cache, validate its prefix with CheckKeyspace.
func NewBreachTracker(store cache.Store) *BreachTracker {
	return &BreachTracker{store: store}
}

// BreachKey returns the state key for one breach identity
func BreachKey(city string, metric protocol.Metric, severity protocol.Severity) string {
	return fmt.Sprintf("%s%s:%s:%s", BreachKeyPrefix, city, metric, severity)
}

// Track updates breach state for one pass. Breaches absent from the pass are
// considered cleared and their state is deleted.
func (bt *BreachTracker) Track(ctx context.Context, events []protocol.AlertEvent, now time.Time) error {
	seen := make(map[string]bool, len(events))

	for i := range events {
		ev := &events[i]
		key := BreachKey(ev.Location, ev.Metric, ev.Severity)
		seen[key] = true

		state, err := bt.GetState(ctx, key)
		if err != nil {
			return err
		}
		if state == nil {
			state = &BreachState{FirstObserved: now}
		}
		state.LastObserved = now
		state.LastValue = ev.Value
		state.Passes++

		if err := bt.setState(ctx, key, state); err != nil {
			return err
		}

		first, last := state.FirstObserved, state.LastObserved
		ev.FirstObserved = &first
		ev.LastObserved = &last
	}

	keys, err := bt.store.Keys(ctx, BreachKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list breach states: %w", err)
	}
	var cleared []string
	for _, key := range keys {
		if !seen[key] {
			cleared = append(cleared, key)
		}
	}
	if len(cleared) > 0 {
		if err := bt.store.Delete(ctx, cleared...); err != nil {
			return fmt.Errorf("failed to clear breach states: %w", err)
		}
	}
	return nil
}

// GetState returns the stored state for key, or nil when the breach is not active
func (bt *BreachTracker) GetState(ctx context.Context, key string) (*BreachState, error) {
	data, ok, err := bt.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get breach state: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var state BreachState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal breach state: %w", err)
	}
	return &state, nil
}

func (bt *BreachTracker) setState(ctx context.Context, key string, state *BreachState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal breach state: %w", err)
	}
	if err := bt.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to set breach state: %w", err)
	}
	return nil
}

// ActiveBreaches returns all tracked breaches keyed by "city:metric:severity"
func (bt *BreachTracker) ActiveBreaches(ctx context.Context) (map[string]*BreachState, error) {
	keys, err := bt.store.Keys(ctx, BreachKeyPrefix)
	if err != nil {
		return nil, err
	}

	states := make(map[string]*BreachState, len(keys))
	for _, key := range keys {
		state, err := bt.GetState(ctx, key)
		if err != nil || state == nil {
			continue
		}
		states[strings.TrimPrefix(key, BreachKeyPrefix)] = state
	}
	return states, nil
}
