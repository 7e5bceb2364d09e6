package agent

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/exec"
	"github.com/gridwatch/gridwatch/hub"
	"github.com/gridwatch/gridwatch/logger"
)

const (
	uplinkWriteWait  = 10 * time.Second
	uplinkDialRetry  = 5 * time.Second
	uplinkSendBuffer = 256
)

// uplink is the Agent's WebSocket client to a Hub: it forwards roll-up
// approved events upstream and executes fix commands the Hub sends back,
// redialing on disconnect for as long as the Agent runs.
type uplink struct {
	url       string
	nodeID    string
	auditSink *exec.AuditSink

	mu     sync.Mutex
	conn   *websocket.Conn
	outbox chan event.Event
}

func newUplink(url, nodeID string) *uplink {
	return &uplink{
		url:    url,
		nodeID: nodeID,
		outbox: make(chan event.Event, uplinkSendBuffer),
	}
}

// send queues ev for delivery to the Hub, blocking while the outbox is
// saturated — a slow or unreachable Hub applies back-pressure to the
// consumer loop rather than losing the event. It only gives up if ctx is
// cancelled (Agent shutdown), in which case the event is dropped because
// there is no longer anyone left to drain the outbox.
func (u *uplink) send(ctx context.Context, ev event.Event) {
	select {
	case u.outbox <- ev:
	case <-ctx.Done():
		logger.Warnw("agent: dropped event on shutdown before hub uplink delivery", "entity_id", ev.EntityID)
	}
}

// run dials the Hub and pumps events/commands until ctx is cancelled,
// redialing with a fixed backoff on every disconnect.
func (u *uplink) run(ctx context.Context, a *Agent) {
	u.auditSink = a.auditSink

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.url, nil)
		if err != nil {
			logger.Warnw("agent: hub uplink dial failed, retrying", logger.FieldError, err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(uplinkDialRetry):
				continue
			}
		}

		u.mu.Lock()
		u.conn = conn
		u.mu.Unlock()

		logger.Infow("agent: hub uplink connected", "hub_url", u.url)
		u.runSession(ctx, conn)

		u.mu.Lock()
		u.conn = nil
		u.mu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(uplinkDialRetry):
		}
	}
}

// runSession pumps outbound events and inbound commands on conn until
// either direction fails or ctx is cancelled.
func (u *uplink) runSession(ctx context.Context, conn *websocket.Conn) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer cancel()
		u.writePump(sessionCtx, conn)
	}()

	go func() {
		defer wg.Done()
		defer cancel()
		u.readPump(sessionCtx, conn)
	}()

	wg.Wait()
}

func (u *uplink) writePump(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-u.outbox:
			payload, err := event.Marshal(ev)
			if err != nil {
				logger.Warnw("agent: failed to marshal event for uplink", logger.FieldError, err.Error())
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(uplinkWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Warnw("agent: hub uplink write failed", logger.FieldError, err.Error())
				return
			}
		}
	}
}

func (u *uplink) readPump(ctx context.Context, conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Infow("agent: hub uplink read stopped", logger.FieldError, err.Error())
			}
			return
		}

		var cmd hub.Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			logger.Warnw("agent: dropped malformed command frame", logger.FieldError, err.Error())
			continue
		}

		u.executeCommand(ctx, cmd)
	}
}

// executeCommand translates a Hub command frame into a remediation
// action and runs it against the named pid, recording the outcome to
// the audit sink the same way a local fix/zap RPC call would.
func (u *uplink) executeCommand(ctx context.Context, cmd hub.Command) {
	action, ok := exec.ParseRecommendation(cmd.Action)
	if !ok {
		logger.Warnw("agent: hub command action did not match any known remediation",
			"intent", cmd.Intent, "action", cmd.Action, "target_pid", cmd.TargetPID)
		return
	}

	pid := int32(cmd.TargetPID)
	out, err := exec.Execute(ctx, action, pid)
	result := "success"
	details := out
	if err != nil {
		result = "failure"
		details = err.Error()
		logger.Warnw("agent: hub-triggered remediation failed",
			logger.FieldError, err.Error(), logger.FieldPID, pid, "action", cmd.Action)
	} else {
		logger.Infow("agent: hub-triggered remediation executed",
			logger.FieldPID, pid, "action", cmd.Action, "output", out)
	}

	if u.auditSink != nil {
		entry := exec.NewAuditEntry(action.Describe(), pid, nil, result, details)
		if err := u.auditSink.Append(entry); err != nil {
			logger.Warnw("agent: audit append failed for hub-triggered action", logger.FieldError, err.Error())
		}
	}

	// Acknowledge the command to the Hub with an action.exec event.
	u.send(ctx, event.Event{
		TS:       time.Now().UnixMilli(),
		Kind:     event.ActionExec,
		EntityID: action.Describe(),
		PID:      &pid,
		Value:    result,
		NodeID:   u.nodeID,
	})
}

func (u *uplink) close() {
	u.mu.Lock()
	conn := u.conn
	u.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
