package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	attached  []string
	labels    []string
	waited    []time.Duration
	attachErr error
	labelErr  error
	waitErr   error
}

func (f *fakeProvider) AttachSSHKey(_ context.Context, _ int, key string) error {
	f.attached = append(f.attached, key)
	return f.attachErr
}

func (f *fakeProvider) LabelInstance(_ context.Context, _ int, label string) error {
	f.labels = append(f.labels, label)
	return f.labelErr
}

func (f *fakeProvider) WaitForReady(_ context.Context, _ int, timeout time.Duration) error {
	f.waited = append(f.waited, timeout)
	return f.waitErr
}

func TestApplyAllRules(t *testing.T) {
	p := &fakeProvider{}
	rs := RuleSet{
		AutoAttachSSH: true,
		AutoLabel:     true,
		LabelPrefix:   "exp",
		WaitForReady:  true,
		ReadyTimeout:  time.Minute,
	}

	report := rs.Apply(context.Background(), p, 42, Input{SSH: true, PublicKey: "ssh-ed25519 AAAA"})

	require.Equal(t, []string{"attach_ssh_key", "auto_label", "wait_for_ready"}, report.Applied)
	require.Empty(t, report.Failed)
	require.Equal(t, []string{"ssh-ed25519 AAAA"}, p.attached)
	require.Equal(t, []string{"exp-42"}, p.labels)
	require.Equal(t, []time.Duration{time.Minute}, p.waited)
}

func TestApplySkipsAttachWithoutSSHAccess(t *testing.T) {
	p := &fakeProvider{}
	rs := Default()

	rs.Apply(context.Background(), p, 42, Input{SSH: false, Jupyter: false, PublicKey: "ssh-ed25519 AAAA"})
	require.Empty(t, p.attached)
}

func TestApplyKeepsCallerLabel(t *testing.T) {
	p := &fakeProvider{}
	rs := Default()

	rs.Apply(context.Background(), p, 42, Input{Label: "my-label"})
	require.Empty(t, p.labels)
}

func TestApplyCollectsFailures(t *testing.T) {
	p := &fakeProvider{labelErr: errors.New("api down")}
	rs := RuleSet{AutoLabel: true}

	report := rs.Apply(context.Background(), p, 42, Input{})
	require.Equal(t, []string{"auto_label"}, report.Failed)
	require.Empty(t, report.Applied)
}

func TestApplyDisabledRulesDoNothing(t *testing.T) {
	p := &fakeProvider{}
	report := RuleSet{}.Apply(context.Background(), p, 42, Input{SSH: true, PublicKey: "k"})
	require.Empty(t, report.Applied)
	require.Empty(t, report.Failed)
	require.Empty(t, p.attached)
	require.Empty(t, p.labels)
	require.Empty(t, p.waited)
}

func TestDefaultLabelPrefix(t *testing.T) {
	p := &fakeProvider{}
	rs := RuleSet{AutoLabel: true}
	rs.Apply(context.Background(), p, 7, Input{})
	require.Equal(t, []string{"rig-7"}, p.labels)
}
