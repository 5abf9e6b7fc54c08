package vast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gpurig/rig/internal/models"
)

// Instance lifecycle errors surfaced by WaitForReady.
var (
	ErrStartupFailed = errors.New("instance failed to start")
	ErrReadyTimeout  = errors.New("timed out waiting for instance to become ready")
)

// DefaultReadyTimeout bounds WaitForReady when the caller passes zero.
const DefaultReadyTimeout = 5 * time.Minute

// readyPollInterval is how often WaitForReady re-checks instance status.
const readyPollInterval = 5 * time.Second

// ListInstances returns the account's instances. owner defaults to "me".
func (c *Client) ListInstances(ctx context.Context, owner string) ([]models.Instance, error) {
	if owner == "" {
		owner = "me"
	}
	var resp struct {
		Instances []models.Instance `json:"instances"`
	}
	q := url.Values{"owner": {owner}}
	if err := c.do(ctx, http.MethodGet, "/instances", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Instances, nil
}

// ShowInstance returns one instance's detail record.
func (c *Client) ShowInstance(ctx context.Context, instanceID int) (*models.Instance, error) {
	var resp struct {
		Success   *bool           `json:"success"`
		Msg       string          `json:"msg"`
		Instances models.Instance `json:"instances"`
	}
	q := url.Values{"owner": {"me"}}
	path := fmt.Sprintf("/instances/%d/", instanceID)
	if err := c.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Success != nil && !*resp.Success {
		return nil, &APIError{Status: http.StatusOK, Msg: resp.Msg}
	}
	if resp.Instances.ID == 0 {
		return nil, &APIError{Status: http.StatusNotFound, Msg: fmt.Sprintf("instance %d not found", instanceID)}
	}
	return &resp.Instances, nil
}

// CreateOptions are the knobs for renting an offer.
type CreateOptions struct {
	Image    string
	Disk     float64
	SSH      bool
	Jupyter  bool
	Direct   bool
	Env      map[string]string
	Label    string
	BidPrice *float64
}

// RunType derives the provider runtype from the requested access modes.
func (o CreateOptions) RunType() string {
	switch {
	case o.SSH && o.Jupyter:
		return "ssh_jupyter"
	case o.SSH:
		return "ssh"
	case o.Jupyter:
		return "jupyter"
	default:
		return "args"
	}
}

// CreateInstance rents an offer and returns the new instance id.
func (c *Client) CreateInstance(ctx context.Context, offerID int, opts CreateOptions) (int, error) {
	if opts.Image == "" {
		return 0, &models.ValidationError{Field: "image", Message: "image is required"}
	}
	if opts.Disk <= 0 {
		opts.Disk = 10.0
	}
	env := opts.Env
	if env == nil {
		env = map[string]string{}
	}

	body := map[string]interface{}{
		"client_id": "me",
		"image":     opts.Image,
		"disk":      opts.Disk,
		"ssh":       opts.SSH,
		"jupyter":   opts.Jupyter,
		"direct":    opts.Direct,
		"runtype":   opts.RunType(),
		"label":     opts.Label,
		"extra_env": env,
	}
	if opts.BidPrice != nil {
		body["price"] = *opts.BidPrice
	}

	var resp opResult
	path := fmt.Sprintf("/asks/%d/", offerID)
	if err := c.do(ctx, http.MethodPut, path, nil, body, &resp); err != nil {
		return 0, err
	}
	if err := resp.err(); err != nil {
		return 0, err
	}
	return resp.NewContract, nil
}

// DestroyInstance removes an instance entirely. It does not need to be
// stopped first.
func (c *Client) DestroyInstance(ctx context.Context, instanceID int) error {
	return c.instanceOp(ctx, http.MethodDelete, fmt.Sprintf("/instances/%d/", instanceID), nil)
}

// StartInstance starts a stopped instance.
func (c *Client) StartInstance(ctx context.Context, instanceID int) error {
	body := map[string]string{"state": "running"}
	return c.instanceOp(ctx, http.MethodPut, fmt.Sprintf("/instances/%d/", instanceID), body)
}

// StopInstance stops a running instance, keeping its storage.
func (c *Client) StopInstance(ctx context.Context, instanceID int) error {
	body := map[string]string{"state": "stopped"}
	return c.instanceOp(ctx, http.MethodPut, fmt.Sprintf("/instances/%d/", instanceID), body)
}

// RebootInstance stop/starts an instance without losing GPU priority.
func (c *Client) RebootInstance(ctx context.Context, instanceID int) error {
	return c.instanceOp(ctx, http.MethodPut, fmt.Sprintf("/instances/reboot/%d/", instanceID), map[string]string{})
}

// RecycleInstance recreates an instance from a freshly pulled image
// without losing GPU priority.
func (c *Client) RecycleInstance(ctx context.Context, instanceID int) error {
	return c.instanceOp(ctx, http.MethodPut, fmt.Sprintf("/instances/recycle/%d/", instanceID), map[string]string{})
}

// LabelInstance sets an instance label.
func (c *Client) LabelInstance(ctx context.Context, instanceID int, label string) error {
	body := map[string]string{"label": label}
	return c.instanceOp(ctx, http.MethodPut, fmt.Sprintf("/instances/%d/", instanceID), body)
}

func (c *Client) instanceOp(ctx context.Context, method, path string, body interface{}) error {
	var resp opResult
	if err := c.do(ctx, method, path, nil, body, &resp); err != nil {
		return err
	}
	return resp.err()
}

// WaitForReady polls instance status until it reports running, fails, or
// the timeout elapses. Transient status-check errors do not abort the wait.
func (c *Client) WaitForReady(ctx context.Context, instanceID int, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		inst, err := c.ShowInstance(ctx, instanceID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn().Err(err).Int("instance_id", instanceID).Msg("status check failed, retrying")
		} else {
			switch inst.ActualStatus {
			case "running":
				return nil
			case "failed", "exited":
				return fmt.Errorf("%w: status %s", ErrStartupFailed, inst.ActualStatus)
			}
		}
		if err := sleepCtx(ctx, readyPollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %s", ErrReadyTimeout, timeout)
}

// SSHInfo resolves the SSH endpoint for an instance. The provider only
// reports host and port; instances expose a root login.
func (c *Client) SSHInfo(ctx context.Context, instanceID int) (*models.Endpoint, error) {
	inst, err := c.ShowInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst.SSHHost == "" || inst.SSHPort == 0 {
		return nil, &APIError{
			Status: http.StatusOK,
			Msg:    fmt.Sprintf("instance %d has no SSH endpoint yet", instanceID),
		}
	}
	ep := &models.Endpoint{Host: inst.SSHHost, Port: inst.SSHPort, User: "root"}
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	return ep, nil
}
