package vast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gpurig/rig/internal/safecmd"
)

// Result URLs are served asynchronously; polling is bounded.
const (
	resultPollInterval = 300 * time.Millisecond
	commandPollLimit   = 30
	logPollLimit       = 10
)

// ErrResultPending is returned when the provider has not materialized the
// result document within the polling budget.
var ErrResultPending = errors.New("provider result is still being prepared")

// ExecuteCommand runs a constrained command on a stopped instance. The
// command is validated against the allow-list and re-rendered from
// validated tokens before anything is sent to the provider.
func (c *Client) ExecuteCommand(ctx context.Context, instanceID int, command string) (string, error) {
	parsed, err := safecmd.Parse(command)
	if err != nil {
		return "", err
	}

	body := map[string]string{"command": parsed.Render()}
	path := fmt.Sprintf("/instances/command/%d/", instanceID)

	var resp opResult
	if err := c.do(ctx, http.MethodPut, path, nil, body, &resp); err != nil {
		return "", err
	}
	if err := resp.err(); err != nil {
		return "", err
	}
	if resp.ResultURL == "" {
		return "", &APIError{Status: http.StatusOK, Msg: "command accepted but no result URL provided"}
	}

	out, err := c.pollResult(ctx, resp.ResultURL, commandPollLimit)
	if err != nil {
		return "", err
	}
	if resp.WriteablePath != "" {
		out = strings.ReplaceAll(out, resp.WriteablePath, "")
	}
	return out, nil
}

// LogOptions narrow an instance log request.
type LogOptions struct {
	Tail       string
	Filter     string
	DaemonLogs bool
}

// Logs requests instance logs and polls the provider's result URL for the
// materialized text.
func (c *Client) Logs(ctx context.Context, instanceID int, opts LogOptions) (string, error) {
	body := map[string]string{}
	if opts.Tail != "" {
		body["tail"] = opts.Tail
	} else {
		body["tail"] = "1000"
	}
	if opts.Filter != "" {
		body["filter"] = opts.Filter
	}
	if opts.DaemonLogs {
		body["daemon_logs"] = "true"
	}

	path := fmt.Sprintf("/instances/request_logs/%d/", instanceID)
	var resp opResult
	if err := c.do(ctx, http.MethodPut, path, nil, body, &resp); err != nil {
		return "", err
	}
	if resp.ResultURL == "" {
		msg := resp.Msg
		if msg == "" {
			msg = "no result URL provided"
		}
		return "", &APIError{Status: http.StatusOK, Msg: msg}
	}

	return c.pollResult(ctx, resp.ResultURL, logPollLimit)
}

// pollResult fetches a result URL until it yields text or the attempt
// budget runs out.
func (c *Client) pollResult(ctx context.Context, resultURL string, attempts int) (string, error) {
	for i := 0; i < attempts; i++ {
		if err := sleepCtx(ctx, resultPollInterval); err != nil {
			return "", err
		}
		text, ok, err := c.fetchText(ctx, resultURL)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.logger.Warn().Err(err).Msg("fetching result URL failed, retrying")
			continue
		}
		if ok && text != "" {
			return text, nil
		}
	}
	return "", ErrResultPending
}
