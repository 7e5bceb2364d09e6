package rpc

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/gridwatch/gridwatch/errors"
	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/exec"
	"github.com/gridwatch/gridwatch/graph"
	"github.com/gridwatch/gridwatch/logger"
	"github.com/gridwatch/gridwatch/rules"
	"github.com/gridwatch/gridwatch/scene"
)

// ProcessSummary is the list_processes response shape for one process.
type ProcessSummary struct {
	PID        int32    `json:"pid"`
	ID         string   `json:"id"`
	JobID      *string  `json:"job_id,omitempty"`
	State      string   `json:"state"`
	Resources  []string `json:"resources"`
	LastUpdate int64    `json:"last_update"`
}

// WhyProcessResult is the why_process response shape.
type WhyProcessResult struct {
	PID    int32    `json:"pid"`
	Causes []string `json:"causes"`
}

// DiagResult is the diag response shape: root-cause strings plus a
// best-guess scene classification and the recommendations a fix would run.
type DiagResult struct {
	PID             int32    `json:"pid"`
	Causes          []string `json:"causes"`
	Scene           string   `json:"scene,omitempty"`
	Recommendations []string `json:"recommendations"`
}

// StepOutcome is the wire-friendly shape of one executed action, with the
// error flattened to a string so it survives JSON round-tripping.
type StepOutcome struct {
	Action string `json:"action"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// FixResult is the fix/zap response shape: the executed plan's outcome.
type FixResult struct {
	PID             int32         `json:"pid"`
	OverallSuccess  bool          `json:"overall_success"`
	Executed        []StepOutcome `json:"executed"`
	Failed          []StepOutcome `json:"failed"`
	Recommendations []string      `json:"recommendations"`
}

// Server handles RPC connections against a live graph, one goroutine
// per connection, half-duplex request/response with pipelining. diag/fix/zap
// are served whether or not WithRemediation has been called; without it,
// diag returns bare root causes with no scene or recommendations, fix has
// no recommendations to act on, and no audit entry is written.
type Server struct {
	listener net.Listener
	graph    *graph.Graph

	rules        *rules.Engine
	scenes       *scene.Registry
	auditSink    *exec.AuditSink
	recentEvents func() []event.Event

	mu     sync.Mutex
	closed bool
}

// NewServer wraps an already-bound listener (see Listen) to serve RPC
// calls against g.
func NewServer(listener net.Listener, g *graph.Graph) *Server {
	return &Server{listener: listener, graph: g}
}

// WithRemediation attaches the rule engine, scene registry, audit sink, and
// a recent-events accessor (used for event-kind rule conditions; nil is
// treated as an empty window) needed to serve diag/fix/zap, and returns s
// for chaining.
func (s *Server) WithRemediation(engine *rules.Engine, scenes *scene.Registry, auditSink *exec.AuditSink, recentEvents func() []event.Event) *Server {
	s.rules = engine
	s.scenes = scenes
	s.auditSink = auditSink
	s.recentEvents = recentEvents
	return s
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed. It returns nil once the server has been closed (including by
// ctx cancellation), and the wrapped accept error otherwise.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return errors.Wrap(err, "rpc accept")
		}
		go s.handleConn(conn)
	}
}

// Close shuts down the listener, unblocking Serve.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		var req Request
		if err := ReadFrame(conn, MaxRequestBytes, &req); err != nil {
			return
		}

		resp := s.dispatch(req)
		if err := WriteFrame(conn, resp); err != nil {
			logger.Warnw("rpc write frame failed", logger.FieldError, err.Error())
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	switch req.Method {
	case "ping":
		return SuccessResponse(map[string]string{"status": "ok"})

	case "list_processes":
		return SuccessResponse(s.listProcesses())

	case "why_process":
		var params struct {
			PID int32 `json:"pid"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ErrorResponse("invalid params for why_process: " + err.Error())
		}
		return SuccessResponse(WhyProcessResult{
			PID:    params.PID,
			Causes: s.graph.RootCause(params.PID),
		})

	case "diag":
		var params struct {
			PID int32 `json:"pid"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ErrorResponse("invalid params for diag: " + err.Error())
		}
		return SuccessResponse(s.diagnose(params.PID))

	case "fix":
		var params struct {
			PID             int32    `json:"pid"`
			Recommendations []string `json:"recommendations,omitempty"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ErrorResponse("invalid params for fix: " + err.Error())
		}
		result, err := s.fix(params.PID, params.Recommendations)
		if err != nil {
			return ErrorResponse(err.Error())
		}
		return SuccessResponse(result)

	case "zap":
		var params struct {
			PID int32 `json:"pid"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ErrorResponse("invalid params for zap: " + err.Error())
		}
		result, err := s.fix(params.PID, []string{"kill process tree"})
		if err != nil {
			return ErrorResponse(err.Error())
		}
		return SuccessResponse(result)

	default:
		return ErrorResponse("unknown method: " + req.Method)
	}
}

// diagnose builds a DiagResult for pid: root-cause strings from the graph,
// a best-guess scene classification, and the recommendation list a fix
// would execute (the matched rule's solution steps, or the scene
// analyzer's own recommendations if no rule matches).
func (s *Server) diagnose(pid int32) DiagResult {
	result := DiagResult{PID: pid, Causes: s.graph.RootCause(pid)}

	target := processNodeIDFor(pid)

	if s.scenes != nil {
		if sceneType, ok := scene.Identify(s.graph, target); ok {
			result.Scene = string(sceneType)
			if analyzer, ok := s.scenes.Get(sceneType); ok {
				analysis := analyzer.Analyze(context.Background(), s.graph, target)
				result.Recommendations = analysis.RecommendedActions
			}
		}
	}

	if s.rules != nil {
		var events []event.Event
		if s.recentEvents != nil {
			events = s.recentEvents()
		}
		if rule, ok := s.rules.MatchFirst(events, s.graph); ok {
			result.Recommendations = rule.SolutionSteps
		}
	}

	return result
}

// fix diagnoses pid (when recommendations is empty) or uses the given
// recommendations directly, builds a plan, runs it, and records each
// executed action to the audit sink if one is configured.
func (s *Server) fix(pid int32, recommendations []string) (FixResult, error) {
	if len(recommendations) == 0 {
		recommendations = s.diagnose(pid).Recommendations
	}

	plan := exec.BuildPlan(recommendations)
	planResult := plan.Run(context.Background(), pid)

	executed := make([]StepOutcome, 0, len(planResult.Executed))
	for _, step := range planResult.Executed {
		executed = append(executed, StepOutcome{Action: step.Action.Describe(), Output: step.Output})
		s.recordAudit(pid, step, "success")
	}

	failed := make([]StepOutcome, 0, len(planResult.Failed))
	for _, step := range planResult.Failed {
		failed = append(failed, StepOutcome{Action: step.Action.Describe(), Output: step.Output, Error: step.Err.Error()})
		s.recordAudit(pid, step, "failure")
	}

	return FixResult{
		PID:             pid,
		OverallSuccess:  planResult.OverallSuccess,
		Executed:        executed,
		Failed:          failed,
		Recommendations: recommendations,
	}, nil
}

func (s *Server) recordAudit(pid int32, step exec.StepResult, result string) {
	if s.auditSink == nil {
		return
	}
	details := step.Output
	if step.Err != nil {
		details = step.Err.Error()
	}
	entry := exec.NewAuditEntry(step.Action.Describe(), pid, nil, result, details)
	if err := s.auditSink.Append(entry); err != nil {
		logger.Warnw("rpc: audit append failed", logger.FieldError, err.Error())
	}
}

// processNodeIDFor builds the unnamespaced process node id for pid, the
// same convention graph.RootCause resolves internally.
func processNodeIDFor(pid int32) string {
	return "pid-" + strconv.FormatInt(int64(pid), 10)
}

func (s *Server) listProcesses() []ProcessSummary {
	nodes := s.graph.ActiveProcesses()
	out := make([]ProcessSummary, 0, len(nodes))

	for _, n := range nodes {
		pid, ok := parsePID(n.ID)
		if !ok {
			continue
		}

		var jobID *string
		if jid, ok := n.Attrs["job_id"]; ok && jid != "" {
			jobID = &jid
		}

		out = append(out, ProcessSummary{
			PID:        pid,
			ID:         n.ID,
			JobID:      jobID,
			State:      n.Attrs["state"],
			Resources:  s.graph.ProcessResources(n.ID),
			LastUpdate: n.LastUpdateMS,
		})
	}
	return out
}

// parsePID extracts the numeric pid from a (possibly namespaced)
// process node id of the form "pid-<n>" or "<node_id>::pid-<n>".
func parsePID(id string) (int32, bool) {
	tail := id
	if idx := strings.LastIndex(id, "::"); idx != -1 {
		tail = id[idx+2:]
	}

	const prefix = "pid-"
	if !strings.HasPrefix(tail, prefix) {
		return 0, false
	}

	n, err := strconv.ParseInt(tail[len(prefix):], 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(n), true
}
