package rpc

import (
	"encoding/json"
	"net"

	"github.com/gridwatch/gridwatch/errors"
)

// Client is a connected RPC session to an Agent's control socket.
type Client struct {
	conn net.Conn
}

// Connect dials the Agent's control endpoint. On POSIX socketPath is a
// Unix socket path and tcpPort is ignored; on Windows the endpoint is TCP
// and a non-zero tcpPort selects 127.0.0.1:<tcpPort>.
func Connect(socketPath string, tcpPort int) (*Client, error) {
	conn, err := Dial(socketPath, tcpPort)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends one request and waits for its response.
func (c *Client) Call(method string, params interface{}) (Response, error) {
	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return Response{}, errors.Wrap(err, "marshal rpc params")
		}
		raw = encoded
	}

	if err := WriteFrame(c.conn, Request{Method: method, Params: raw}); err != nil {
		return Response{}, err
	}

	var resp Response
	if err := ReadFrame(c.conn, MaxResponseBytes, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Ping checks that the agent is alive and responsive.
func (c *Client) Ping() error {
	resp, err := c.Call("ping", nil)
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.Newf("ping failed: %s", errMessage(resp))
	}
	return nil
}

// ListProcesses fetches the current process snapshot.
func (c *Client) ListProcesses() ([]ProcessSummary, error) {
	resp, err := c.Call("list_processes", nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errors.Newf("list_processes failed: %s", errMessage(resp))
	}

	var out []ProcessSummary
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, errors.Wrap(err, "decode list_processes response")
	}
	return out, nil
}

// WhyProcess fetches the root-cause chain for pid.
func (c *Client) WhyProcess(pid int32) (WhyProcessResult, error) {
	resp, err := c.Call("why_process", map[string]int32{"pid": pid})
	if err != nil {
		return WhyProcessResult{}, err
	}
	if !resp.Success {
		return WhyProcessResult{}, errors.Newf("why_process failed: %s", errMessage(resp))
	}

	var out WhyProcessResult
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return WhyProcessResult{}, errors.Wrap(err, "decode why_process response")
	}
	return out, nil
}

// Diag fetches root-cause, scene classification, and recommended
// remediation steps for pid without executing anything.
func (c *Client) Diag(pid int32) (DiagResult, error) {
	resp, err := c.Call("diag", map[string]int32{"pid": pid})
	if err != nil {
		return DiagResult{}, err
	}
	if !resp.Success {
		return DiagResult{}, errors.Newf("diag failed: %s", errMessage(resp))
	}

	var out DiagResult
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return DiagResult{}, errors.Wrap(err, "decode diag response")
	}
	return out, nil
}

// Fix diagnoses pid (when recommendations is empty) and executes the
// resulting remediation plan. Pass an explicit recommendations list to
// bypass diagnosis and run specific steps directly.
func (c *Client) Fix(pid int32, recommendations []string) (FixResult, error) {
	resp, err := c.Call("fix", map[string]interface{}{"pid": pid, "recommendations": recommendations})
	if err != nil {
		return FixResult{}, err
	}
	if !resp.Success {
		return FixResult{}, errors.Newf("fix failed: %s", errMessage(resp))
	}

	var out FixResult
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return FixResult{}, errors.Wrap(err, "decode fix response")
	}
	return out, nil
}

// Zap immediately kills pid's entire process tree, bypassing diagnosis.
func (c *Client) Zap(pid int32) (FixResult, error) {
	resp, err := c.Call("zap", map[string]int32{"pid": pid})
	if err != nil {
		return FixResult{}, err
	}
	if !resp.Success {
		return FixResult{}, errors.Newf("zap failed: %s", errMessage(resp))
	}

	var out FixResult
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return FixResult{}, errors.Wrap(err, "decode zap response")
	}
	return out, nil
}

func errMessage(resp Response) string {
	if resp.Error == nil {
		return "unknown error"
	}
	return *resp.Error
}
