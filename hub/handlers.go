package hub

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gridwatch/gridwatch/graph"
	"github.com/gridwatch/gridwatch/logger"
)

// psEntry is one row of the GET /api/v1/ps response: the global graph's
// active processes, flattened across every Agent session.
type psEntry struct {
	NodeID    string   `json:"node_id"`
	PID       int32    `json:"pid"`
	State     string   `json:"state"`
	Resources []string `json:"resources"`
}

func (h *Hub) handlePS(w http.ResponseWriter, r *http.Request) {
	nodes := h.graph.ActiveProcesses()
	out := make([]psEntry, 0, len(nodes))

	for _, n := range nodes {
		nodeID, pid := splitNamespacedPID(n.ID)
		out = append(out, psEntry{
			NodeID:    nodeID,
			PID:       pid,
			State:     n.Attrs["state"],
			Resources: h.graph.ProcessResources(n.ID),
		})
	}

	writeJSON(w, http.StatusOK, out)
}

type whyProcessEntry struct {
	NodeID     string `json:"node_id"`
	PID        int32  `json:"pid"`
	NodeIDFull string `json:"node_id_full"`
}

type whyResponse struct {
	Causes    []string          `json:"causes"`
	Processes []whyProcessEntry `json:"processes"`
}

func (h *Hub) handleWhy(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id query parameter is required")
		return
	}

	nodes := h.graph.AllNodes()

	seenCauses := make(map[string]struct{})
	var causes []string
	var processes []whyProcessEntry

	for id, n := range nodes {
		if n.Kind != graph.KindProcess || n.Attrs["job_id"] != jobID {
			continue
		}

		nodeID, pid := splitNamespacedPID(id)
		processes = append(processes, whyProcessEntry{NodeID: nodeID, PID: pid, NodeIDFull: id})

		for _, cause := range h.graph.RootCauseByID(id) {
			if _, ok := seenCauses[cause]; ok {
				continue
			}
			seenCauses[cause] = struct{}{}
			causes = append(causes, cause)
		}
	}

	writeJSON(w, http.StatusOK, whyResponse{Causes: causes, Processes: processes})
}

type fixRequest struct {
	NodeID    string `json:"node_id"`
	TargetPID uint32 `json:"target_pid"`
	Action    string `json:"action,omitempty"`
}

func (h *Hub) handleFix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "fix requires POST")
		return
	}

	var req fixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.NodeID == "" {
		writeError(w, http.StatusBadRequest, "node_id is required")
		return
	}

	cmd := NewFixCommand(req.TargetPID, req.Action)
	if err := sendCommand(r.Context(), h.registry, req.NodeID, cmd); err != nil {
		if _, ok := h.registry.Get(req.NodeID); !ok {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		logger.Warnw("hub fix command delivery failed", logger.FieldError, err.Error(), logger.FieldNodeID, req.NodeID)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// splitNamespacedPID splits a Hub-namespaced process node id ("node-a::pid-7")
// into its node id and numeric pid.
func splitNamespacedPID(id string) (nodeID string, pid int32) {
	idx := strings.LastIndex(id, "::")
	tail := id
	if idx != -1 {
		nodeID = id[:idx]
		tail = id[idx+2:]
	}

	const prefix = "pid-"
	if strings.HasPrefix(tail, prefix) {
		if n, err := strconv.ParseInt(tail[len(prefix):], 10, 32); err == nil {
			pid = int32(n)
		}
	}
	return nodeID, pid
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnw("hub failed to encode response", logger.FieldError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
