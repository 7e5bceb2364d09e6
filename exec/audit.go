package exec

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/gridwatch/gridwatch/errors"
)

// AuditEntry is one JSON-line record of a remediation action execution.
type AuditEntry struct {
	Timestamp   string  `json:"timestamp"`
	User        string  `json:"user"`
	Action      string  `json:"action"`
	TargetPID   int32   `json:"target_pid"`
	TargetJobID *string `json:"target_job_id"`
	Result      string  `json:"result"`
	Details     string  `json:"details"`
}

// AuditSink appends audit entries as JSON lines to a file, rotating to a
// timestamped name once the file exceeds MaxSizeBytes.
type AuditSink struct {
	mu           sync.Mutex
	path         string
	maxSizeBytes int64
	file         *os.File
	currentSizeB int64
}

// DefaultMaxSizeBytes is the rotation threshold used when none is given.
const DefaultMaxSizeBytes = 10 * 1024 * 1024

// NewAuditSink opens (or creates) path in append mode for audit logging,
// rotating once it exceeds maxSizeBytes. A maxSizeBytes of 0 uses
// DefaultMaxSizeBytes.
func NewAuditSink(path string, maxSizeBytes int64) (*AuditSink, error) {
	if maxSizeBytes <= 0 {
		maxSizeBytes = DefaultMaxSizeBytes
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open audit log %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat audit log %s", path)
	}

	return &AuditSink{
		path:         path,
		maxSizeBytes: maxSizeBytes,
		file:         f,
		currentSizeB: info.Size(),
	}, nil
}

// Append writes entry as one JSON line, rotating first if the write
// would exceed the size threshold.
func (s *AuditSink) Append(entry AuditEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshal audit entry")
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentSizeB+int64(len(line)) > s.maxSizeBytes {
		if err := s.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := s.file.Write(line)
	if err != nil {
		return errors.Wrap(err, "write audit entry")
	}
	s.currentSizeB += int64(n)
	return nil
}

// rotateLocked renames the current log to a timestamped name and opens a
// fresh file at the original path. Caller must hold s.mu.
func (s *AuditSink) rotateLocked() error {
	if err := s.file.Close(); err != nil {
		return errors.Wrap(err, "close audit log before rotation")
	}

	rotated := s.path + "." + time.Now().UTC().Format("20060102_150405") + ".log"
	if err := os.Rename(s.path, rotated); err != nil {
		return errors.Wrapf(err, "rotate audit log to %s", rotated)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "reopen audit log %s", s.path)
	}
	s.file = f
	s.currentSizeB = 0
	return nil
}

// Close flushes and closes the underlying file.
func (s *AuditSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// currentUser returns $USER, falling back to $USERNAME (Windows), then
// "unknown".
func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return "unknown"
}

// NewAuditEntry builds an AuditEntry stamped with the current time and
// OS user.
func NewAuditEntry(action string, targetPID int32, targetJobID *string, result, details string) AuditEntry {
	return AuditEntry{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		User:        currentUser(),
		Action:      action,
		TargetPID:   targetPID,
		TargetJobID: targetJobID,
		Result:      result,
		Details:     details,
	}
}
