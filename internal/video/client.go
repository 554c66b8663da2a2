// Package video drives the text-to-video job API that renders one clip per segment.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "https://api.kie.ai/api/v1"
	Model          = "sora-2-text-to-video"

	// CostPer10s is the USD price of one 10-second clip.
	CostPer10s = 0.15
)

var ErrWaitTimeout = errors.New("clip task did not finish in time")

// TaskFailedError is returned when the job API reports a failed task.
type TaskFailedError struct {
	TaskID  string
	Code    string
	Message string
}

func (e *TaskFailedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("task %s failed (%s): %s", e.TaskID, e.Code, e.Message)
	}
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Message)
}

type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// TaskStatus is the normalized state of one job.
type TaskStatus struct {
	TaskID      string
	State       TaskState
	RawState    string
	VideoURL    string
	FailCode    string
	FailMessage string
}

// Client talks to the kie.ai jobs API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	// download uses a longer timeout than the JSON endpoints.
	download *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		download: &http.Client{Timeout: 2 * time.Minute},
	}
}

type createTaskRequest struct {
	Model string          `json:"model"`
	Input createTaskInput `json:"input"`
}

type createTaskInput struct {
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio"`
	NFrames         string `json:"n_frames"`
	RemoveWatermark bool   `json:"remove_watermark"`
}

type envelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type createTaskData struct {
	TaskID string `json:"taskId"`
}

type recordInfoData struct {
	TaskID     string `json:"taskId"`
	State      string `json:"state"`
	ResultJSON string `json:"resultJson"`
	FailCode   string `json:"failCode"`
	FailMsg    string `json:"failMsg"`
}

type resultPayload struct {
	ResultURLs []string `json:"resultUrls"`
}

// CreateTask submits a clip of the given duration class and returns its task id.
func (c *Client) CreateTask(ctx context.Context, prompt string, class int, aspectRatio string) (string, error) {
	body, err := json.Marshal(createTaskRequest{
		Model: Model,
		Input: createTaskInput{
			Prompt:          prompt,
			AspectRatio:     aspectRatio,
			NFrames:         fmt.Sprint(class),
			RemoveWatermark: true,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs/createTask", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}

	var data createTaskData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.TaskID == "" {
		return "", fmt.Errorf("response carried no task id")
	}
	return data.TaskID, nil
}

// TaskStatus queries one task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/recordInfo?taskId="+url.QueryEscape(taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}

	env, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}

	status := &TaskStatus{TaskID: taskID, State: TaskPending}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return status, nil
	}

	var data recordInfoData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode task record: %w", err)
	}
	status.RawState = data.State

	switch data.State {
	case "waiting", "queuing", "generating":
	case "success":
		var result resultPayload
		if err := json.Unmarshal([]byte(data.ResultJSON), &result); err != nil {
			return nil, fmt.Errorf("parse result json: %w", err)
		}
		if len(result.ResultURLs) == 0 || result.ResultURLs[0] == "" {
			status.State = TaskFailed
			status.FailMessage = "task succeeded without a result url"
			return status, nil
		}
		status.State = TaskSucceeded
		status.VideoURL = result.ResultURLs[0]
	case "fail":
		status.State = TaskFailed
		status.FailCode = data.FailCode
		status.FailMessage = data.FailMsg
		if status.FailMessage == "" {
			status.FailMessage = "generation failed"
		}
	default:
		log.Warn().Str("task_id", taskID).Str("state", data.State).Msg("Unknown clip task state, treating as pending")
	}
	return status, nil
}

// WaitForCompletion polls a task until it succeeds, fails or maxWait elapses.
// Transient query errors are logged and retried within the same bound.
func (c *Client) WaitForCompletion(ctx context.Context, taskID string, interval, maxWait time.Duration) (string, error) {
	deadline := time.Now().Add(maxWait)
	for {
		status, err := c.TaskStatus(ctx, taskID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Ctx(ctx).Warn().Err(err).Str("task_id", taskID).Msg("Poll error, retrying")
		case status.State == TaskSucceeded:
			return status.VideoURL, nil
		case status.State == TaskFailed:
			return "", &TaskFailedError{TaskID: taskID, Code: status.FailCode, Message: status.FailMessage}
		}

		if time.Now().Add(interval).After(deadline) {
			return "", fmt.Errorf("%w: waited %s", ErrWaitTimeout, maxWait)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Download fetches a finished clip.
func (c *Client) Download(ctx context.Context, videoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download clip: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read clip body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("download clip: empty body")
	}
	return data, nil
}

// EstimateCost returns the USD price of one clip of the given class.
func EstimateCost(class int) float64 {
	if class > 10 {
		return CostPer10s * 1.5
	}
	return CostPer10s
}

func (c *Client) do(req *http.Request) (*envelope, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s - %s", resp.Status, string(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Code != 200 {
		msg := env.Msg
		if msg == "" {
			msg = env.Message
		}
		return nil, fmt.Errorf("API error (code %d): %s", env.Code, msg)
	}
	return &env, nil
}
