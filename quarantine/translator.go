package quarantine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/logger"
)

// DefaultCooldown is the minimum time between quarantine actions on the
// same node.
const DefaultCooldown = 5 * time.Minute

const taintKey = "gridwatch.io/hardware-failure"

// maxQuarantineActionsPerMinute bounds the translator's total taint/evict
// rate across the whole cluster, independent of the per-node cool-down — a
// fault detector gone wrong (e.g. a bad rule matching every node at once)
// must not be able to turn into a mass-eviction storm just because each
// node individually is outside its own cool-down.
const maxQuarantineActionsPerMinute = 30

// Translator watches the event stream for irreversible faults and drives
// an Adapter to taint and evict affected nodes, subject to a per-node
// cool-down and a cluster-wide storm guard. A disabled Translator is a
// no-op sink.
type Translator struct {
	adapter  Adapter
	enabled  bool
	cooldown time.Duration
	timeNow  func() time.Time

	mu         sync.Mutex
	lastFired  map[string]time.Time
	stormGuard *rate.Limiter
}

// NewTranslator builds a Translator with the real clock and the default
// cool-down.
func NewTranslator(adapter Adapter, enabled bool) *Translator {
	return NewTranslatorWithClock(adapter, enabled, DefaultCooldown, time.Now)
}

// NewTranslatorWithClock builds a Translator with an injectable cool-down
// and clock, for deterministic testing. The storm guard always runs on the
// real wall clock (rate.Limiter reads time.Now), so the injected clock does
// not refill it: beyond a burst of maxQuarantineActionsPerMinute actions it
// suppresses further actions however far the injected clock is advanced.
func NewTranslatorWithClock(adapter Adapter, enabled bool, cooldown time.Duration, timeNow func() time.Time) *Translator {
	return &Translator{
		adapter:    adapter,
		enabled:    enabled,
		cooldown:   cooldown,
		timeNow:    timeNow,
		lastFired:  make(map[string]time.Time),
		stormGuard: rate.NewLimiter(rate.Limit(float64(maxQuarantineActionsPerMinute)/60.0), maxQuarantineActionsPerMinute),
	}
}

// Observe inspects ev for an irreversible fault and, if one is found and
// the node is outside its cool-down, taints and evicts it. A disabled
// translator, a non-fault event, or a node within its cool-down all
// return (false, nil) — "no action taken" is not an error.
func (t *Translator) Observe(ctx context.Context, ev event.Event) (acted bool, err error) {
	if !t.enabled {
		return false, nil
	}

	fault, ok := DetectFault(ev)
	if !ok {
		return false, nil
	}

	if t.withinCooldown(fault.NodeID) {
		return false, nil
	}

	if !t.stormGuard.Allow() {
		logger.Warnw("quarantine: cluster-wide action rate exceeded, suppressing", logger.FieldNodeID, fault.NodeID)
		return false, nil
	}

	t.armCooldown(fault.NodeID)

	if err := t.adapter.Taint(ctx, fault.NodeID, taintKey, fault.Reason); err != nil {
		logger.Warnw("quarantine: taint failed", logger.FieldNodeID, fault.NodeID, logger.FieldError, err.Error())
		return false, err
	}

	if err := t.adapter.Evict(ctx, fault.NodeID); err != nil {
		// Eviction failures are logged, not fatal — the taint alone keeps
		// the scheduler from placing new work there.
		logger.Warnw("quarantine: evict failed", logger.FieldNodeID, fault.NodeID, logger.FieldError, err.Error())
	}

	return true, nil
}

func (t *Translator) withinCooldown(nodeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastFired[nodeID]
	if !ok {
		return false
	}
	return t.timeNow().Sub(last) < t.cooldown
}

// armCooldown stamps nodeID as just-fired. It is called before the
// adapter calls, not after, so an orchestrator call failure still arms
// the cool-down and prevents a tight retry loop (matches spec: "cool-down
// armed anyway to prevent tight loops").
func (t *Translator) armCooldown(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastFired[nodeID] = t.timeNow()
}
