package agent

import (
	"context"

	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/logger"
)

// consume drains the bus, ingesting every event into the graph, recording
// it into the recent-events window for rule matching, and forwarding it
// to the Hub uplink when the roll-up filter approves it. It returns once
// the bus's channel closes (all producers gone) or ctx is cancelled.
func (a *Agent) consume(ctx context.Context) {
	events := a.eventBus.Events()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}

			a.graph.Ingest(ev)
			a.recordRecent(ev)

			if a.uplink != nil && a.rollupFilter.ShouldForward(ev) {
				forwarded := ev
				if forwarded.NodeID == "" {
					forwarded.NodeID = a.nodeID
				}
				a.uplink.send(ctx, forwarded)
			}

			a.maybeAutoRemediate(ev)
		}
	}
}

// maybeAutoRemediate checks whether the just-ingested event completes a
// rule match and, if so, logs the match. Automatic execution of the
// matched rule's solution steps is left to an operator-invoked `fix`
// (or the Hub's /api/v1/fix), not run unattended here.
func (a *Agent) maybeAutoRemediate(ev event.Event) {
	if a.rulesEngine == nil {
		return
	}
	rule, ok := a.rulesEngine.MatchFirst(a.RecentEvents(), a.graph)
	if !ok {
		return
	}
	logger.Infow("agent: rule matched",
		"rule", rule.Name,
		"scene", rule.Scene,
		"entity_id", ev.EntityID,
	)
}
