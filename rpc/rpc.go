// Package rpc implements the Agent's local control-plane protocol: a
// 4-byte big-endian length prefix around a JSON body, served over a Unix
// domain socket on POSIX or loopback TCP on Windows.
package rpc

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/gridwatch/gridwatch/errors"
)

// MaxRequestBytes bounds an inbound request body to defend the server
// against a malicious or buggy client driving it out of memory.
const MaxRequestBytes = 10 * 1024 * 1024

// MaxResponseBytes bounds an inbound response body on the client side —
// larger than MaxRequestBytes because a process listing can be large.
const MaxResponseBytes = 100 * 1024 * 1024

// Request is the wire shape of an RPC call: Method selects the handler,
// Params carries method-specific arguments.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the wire shape of an RPC reply.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *string         `json:"error,omitempty"`
}

// SuccessResponse wraps data as a successful Response.
func SuccessResponse(data interface{}) Response {
	raw, err := json.Marshal(data)
	if err != nil {
		msg := err.Error()
		return Response{Error: &msg}
	}
	return Response{Success: true, Data: raw}
}

// ErrorResponse wraps msg as a failed Response.
func ErrorResponse(msg string) Response {
	return Response{Success: false, Error: &msg}
}

// WriteFrame writes a length-prefixed JSON frame to w.
func WriteFrame(w io.Writer, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal rpc frame")
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "write rpc frame length")
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, "write rpc frame body")
	}
	return nil
}

// ReadFrame reads a length-prefixed frame from r into v, enforcing
// maxBytes on the declared body length before allocating a buffer for it.
func ReadFrame(r io.Reader, maxBytes uint32, v interface{}) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxBytes {
		return errors.Newf("rpc frame of %d bytes exceeds limit of %d bytes", n, maxBytes)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return errors.Wrap(err, "read rpc frame body")
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, "decode rpc frame")
	}
	return nil
}
