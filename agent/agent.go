// Package agent wires the node-local components — bus, graph, probe
// supervisor, rule engine, scene registry, executor, roll-up filter, local
// RPC server, and an optional Hub uplink — into one long-lived process,
// mirroring the teacher's QNTXServer lifecycle: a cancellable context, a
// WaitGroup of long-running goroutines, and a Shutdown that cancels and
// drains them within a timeout.
package agent

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/gridwatch/gridwatch/bus"
	"github.com/gridwatch/gridwatch/config"
	"github.com/gridwatch/gridwatch/errors"
	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/exec"
	"github.com/gridwatch/gridwatch/graph"
	"github.com/gridwatch/gridwatch/logger"
	"github.com/gridwatch/gridwatch/probe"
	"github.com/gridwatch/gridwatch/rollup"
	"github.com/gridwatch/gridwatch/rpc"
	"github.com/gridwatch/gridwatch/rules"
	"github.com/gridwatch/gridwatch/scene"
)

// ShutdownTimeout bounds how long Shutdown waits for goroutines to drain
// before giving up and returning anyway.
const ShutdownTimeout = 10 * time.Second

// recentEventWindow is how many of the most recently ingested events are
// kept for event-kind rule conditions to match against.
const recentEventWindow = 256

// Options configures a single Agent run; fields left zero fall back to
// cfg's defaults.
type Options struct {
	NodeID    string   // identifies this Agent to the Hub; defaults to the OS hostname
	ProbePath string   // external probe binary to supervise; empty disables probing
	ProbeArgs []string
	HubURL    string // overrides cfg.Hub.URL when non-empty
}

// Agent is one node's complete observability-and-remediation runtime.
type Agent struct {
	cfg     *config.Config
	opts    Options
	nodeID  string

	eventBus      *bus.Bus
	graph         *graph.Graph
	rulesEngine   *rules.Engine
	sceneRegistry *scene.Registry
	auditSink     *exec.AuditSink
	rollupFilter  *rollup.Filter
	probe         *probe.Supervisor
	rpcListener   net.Listener
	rpcServer     *rpc.Server
	uplink        *uplink

	recentMu     sync.Mutex
	recentEvents []event.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Agent from cfg and opts. It opens the RPC listener and the
// audit sink eagerly (so configuration errors surface before Run is
// called) but does not start any goroutine yet.
func New(cfg *config.Config, opts Options) (*Agent, error) {
	if opts.NodeID == "" {
		opts.NodeID = defaultNodeID()
	}

	auditSink, err := exec.NewAuditSink(cfg.Audit.Path, cfg.Audit.RotationBytes)
	if err != nil {
		return nil, errors.Wrap(err, "open audit sink")
	}

	rulesEngine := rules.NewEngine()
	if cfg.Rules.Directory != "" {
		if err := rulesEngine.LoadDir(cfg.Rules.Directory); err != nil {
			logger.Warnw("agent: failed to load rule directory, starting with no rules",
				logger.FieldError, err.Error(), "rule_directory", cfg.Rules.Directory)
		}
	}

	listener, err := rpc.Listen(cfg.RPC.SocketPath, cfg.RPC.TCPPort)
	if err != nil {
		auditSink.Close()
		return nil, errors.Wrap(err, "open rpc listener")
	}

	a := &Agent{
		cfg:           cfg,
		opts:          opts,
		nodeID:        opts.NodeID,
		eventBus:      bus.New(cfg.Bus.Capacity),
		graph:         graph.NewWithWindows(cfg.Graph.ErrorRetention(), cfg.Graph.ProcessIdle()),
		rulesEngine:   rulesEngine,
		sceneRegistry: scene.NewDefaultRegistry(),
		auditSink:     auditSink,
		rollupFilter:  rollup.New(),
		rpcListener:   listener,
	}

	a.rpcServer = rpc.NewServer(listener, a.graph).
		WithRemediation(a.rulesEngine, a.sceneRegistry, a.auditSink, a.RecentEvents)

	hubURL := cfg.Hub.URL
	if opts.HubURL != "" {
		hubURL = opts.HubURL
	}
	if hubURL != "" {
		a.uplink = newUplink(hubURL, opts.NodeID)
	}

	if opts.ProbePath != "" {
		producer := a.eventBus.NewProducer()
		a.probe = probe.New(opts.ProbePath, opts.ProbeArgs, producer)
	}

	return a, nil
}

// Run starts every long-running component and blocks until ctx is done,
// then shuts down cooperatively. It always returns ctx.Err() once shutdown
// completes.
func (a *Agent) Run(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.consume(a.ctx)
	}()

	if a.probe != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.probe.Run(a.ctx)
		}()
	}

	if a.rulesEngine != nil && a.cfg.Rules.Directory != "" {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.rulesEngine.Watch(a.ctx); err != nil && a.ctx.Err() == nil {
				logger.Warnw("agent: rule directory watcher stopped", logger.FieldError, err.Error())
			}
		}()
	}

	if a.uplink != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.uplink.run(a.ctx, a)
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.rpcServer.Serve(a.ctx); err != nil && a.ctx.Err() == nil {
			logger.Warnw("agent: rpc server stopped", logger.FieldError, err.Error())
		}
	}()

	<-a.ctx.Done()
	return a.shutdown()
}

// shutdown cancels every component and waits up to ShutdownTimeout for them
// to drain, mirroring the teacher's Stop(): cancel, then wait-with-timeout.
func (a *Agent) shutdown() error {
	logger.Infow("agent: shutting down", logger.FieldNodeID, a.nodeID)

	a.cancel()
	a.rpcServer.Close()
	if a.uplink != nil {
		a.uplink.close()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Infow("agent: all goroutines stopped cleanly")
	case <-time.After(ShutdownTimeout):
		logger.Warnw("agent: shutdown timed out, returning anyway", "timeout", ShutdownTimeout)
	}

	a.auditSink.Close()
	return a.ctx.Err()
}

// Graph returns the Agent's state graph, for CLI commands that run
// in-process rather than over RPC (e.g. a local `ps` short-circuit).
func (a *Agent) Graph() *graph.Graph {
	return a.graph
}

// RecentEvents returns a snapshot of the most recently ingested events,
// newest last, for rule conditions that match against recent event kinds.
func (a *Agent) RecentEvents() []event.Event {
	a.recentMu.Lock()
	defer a.recentMu.Unlock()
	out := make([]event.Event, len(a.recentEvents))
	copy(out, a.recentEvents)
	return out
}

func (a *Agent) recordRecent(ev event.Event) {
	a.recentMu.Lock()
	defer a.recentMu.Unlock()
	a.recentEvents = append(a.recentEvents, ev)
	if len(a.recentEvents) > recentEventWindow {
		a.recentEvents = a.recentEvents[len(a.recentEvents)-recentEventWindow:]
	}
}
