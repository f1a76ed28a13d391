// ABOUTME: Experiment result retrieval against POST /experiment/result/{task_id}
// ABOUTME: Accepts the status envelope or a bare result object and normalizes both

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Task statuses reported by the backend.
const (
	StatusRunning   = "running"
	StatusFailed    = "failed"
	StatusCompleted = "completed"
)

const msgResultFailed = "Could not fetch experiment results"

// ErrEmptyTaskID is returned when no task ID is given.
var ErrEmptyTaskID = errors.New("task id is required")

// Result is a normalized experiment result envelope. Payload holds the
// result object (with its "test" field) only when Status is completed.
type Result struct {
	TaskID      string          `json:"task_id"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"result,omitempty"`
	Explanation string          `json:"explanation,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Pending reports whether the task is still running.
func (r *Result) Pending() bool { return r.Status == StatusRunning }

// Failed reports whether the task failed on the backend.
func (r *Result) Failed() bool { return r.Status == StatusFailed }

// Completed reports whether Payload holds a result.
func (r *Result) Completed() bool { return r.Status == StatusCompleted }

// ExperimentResult fetches the result for taskID.
func (c *Client) ExperimentResult(ctx context.Context, taskID string) (*Result, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, ErrEmptyTaskID
	}

	body, err := c.post(ctx, c.endpoint("experiment", "result", taskID), "", nil, msgResultFailed)
	if err != nil {
		return nil, err
	}

	res, err := ParseResult(taskID, body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched experiment result", "task_id", taskID, "status", res.Status)
	return res, nil
}

// ParseResult normalizes a result body. A top-level "test" field marks a
// bare result object, which is treated as completed.
func ParseResult(taskID string, body []byte) (*Result, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("decoding experiment result: expected a JSON object")
	}

	var probe struct {
		Test        *json.RawMessage `json:"test"`
		Status      string           `json:"status"`
		Result      json.RawMessage  `json:"result"`
		Explanation json.RawMessage  `json:"explanation"`
		Error       string           `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("decoding experiment result: %w", err)
	}

	if probe.Test != nil {
		return &Result{TaskID: taskID, Status: StatusCompleted, Payload: json.RawMessage(trimmed)}, nil
	}

	res := &Result{TaskID: taskID, Status: probe.Status, Error: probe.Error}
	res.Explanation = explanationText(probe.Explanation)

	switch probe.Status {
	case StatusRunning, StatusFailed:
	case StatusCompleted:
		if len(probe.Result) == 0 || string(probe.Result) == "null" {
			return nil, fmt.Errorf("decoding experiment result: completed without a result")
		}
		res.Payload = probe.Result
	default:
		return nil, fmt.Errorf("decoding experiment result: unknown status %q", probe.Status)
	}
	return res, nil
}

// explanationText accepts a string or any other JSON value, which is kept verbatim.
func explanationText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
