// Package rules applies post-creation automation to new instances. The
// rule set is explicit configuration threaded through the daemon; there is
// no process-global rule state.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gpurig/rig/internal/logging"
)

// RuleSet is the automation applied after an instance is created.
type RuleSet struct {
	AutoAttachSSH bool
	AutoLabel     bool
	LabelPrefix   string
	WaitForReady  bool
	ReadyTimeout  time.Duration
}

// Default returns the rule set used when nothing is configured.
func Default() RuleSet {
	return RuleSet{
		AutoAttachSSH: true,
		AutoLabel:     true,
		LabelPrefix:   "rig",
		WaitForReady:  false,
		ReadyTimeout:  5 * time.Minute,
	}
}

// Provider is the slice of the provider client the rules need.
type Provider interface {
	AttachSSHKey(ctx context.Context, instanceID int, publicKey string) error
	LabelInstance(ctx context.Context, instanceID int, label string) error
	WaitForReady(ctx context.Context, instanceID int, timeout time.Duration) error
}

// Input describes the instance the rules run against.
type Input struct {
	SSH     bool
	Jupyter bool

	// Label is the label the caller set at creation, empty when none.
	Label string

	// PublicKey is the key material to attach when AutoAttachSSH fires.
	PublicKey string
}

// Report lists what the rules did. Rule failures are collected rather than
// aborting the run; the instance itself was already created.
type Report struct {
	Applied []string
	Failed  []string
}

// Apply runs the enabled rules against a freshly created instance.
func (r RuleSet) Apply(ctx context.Context, p Provider, instanceID int, in Input) Report {
	logger := logging.Component("rules").With().Int("instance_id", instanceID).Logger()
	var report Report

	if r.AutoAttachSSH && (in.SSH || in.Jupyter) && in.PublicKey != "" {
		r.runRule(&report, logger, "attach_ssh_key", func() error {
			return p.AttachSSHKey(ctx, instanceID, in.PublicKey)
		})
	}

	if r.AutoLabel && in.Label == "" {
		label := fmt.Sprintf("%s-%d", r.labelPrefix(), instanceID)
		r.runRule(&report, logger, "auto_label", func() error {
			return p.LabelInstance(ctx, instanceID, label)
		})
	}

	if r.WaitForReady {
		r.runRule(&report, logger, "wait_for_ready", func() error {
			return p.WaitForReady(ctx, instanceID, r.ReadyTimeout)
		})
	}

	return report
}

func (r RuleSet) labelPrefix() string {
	if r.LabelPrefix == "" {
		return "rig"
	}
	return r.LabelPrefix
}

func (r RuleSet) runRule(report *Report, logger zerolog.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn().Err(err).Str("rule", name).Msg("post-creation rule failed")
		report.Failed = append(report.Failed, name)
		return
	}
	logger.Info().Str("rule", name).Msg("post-creation rule applied")
	report.Applied = append(report.Applied, name)
}
