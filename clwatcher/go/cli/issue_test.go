package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"go.skia.org/clwatcher/go/exec"
)

// issueContext returns a context whose exec calls are served by a fake
// "git cl issue" which prints the given output.
func issueContext(t *testing.T, output string) context.Context {
	mock := &exec.CommandCollector{}
	mock.SetDelegateRun(func(ctx context.Context, c *exec.Command) error {
		require.Equal(t, []string{"cl", "issue"}, c.Args)
		_, err := c.CombinedOutput.Write([]byte(output))
		return err
	})
	return exec.NewContext(context.Background(), mock.Run)
}

func TestIssueCommand(t *testing.T) {
	got := IssueCommand()
	require.NotNil(t, got)
	assert.Equal(t, "issue", got.Name)
}

func TestIssueCommand_action(t *testing.T) {
	out := &bytes.Buffer{}
	iCmd := issueCmd{commonCmd{cwd: "/checkout", out: out}}

	cliCtx := cli.NewContext(nil, nil, nil)
	cliCtx.Context = issueContext(t, "Issue number: 12345 (https://codereview.chromium.org/12345)")
	require.NoError(t, iCmd.action(cliCtx))
	assert.Equal(t, "12345\n", out.String())
}

func TestIssueCommand_action_noIssue(t *testing.T) {
	out := &bytes.Buffer{}
	iCmd := issueCmd{commonCmd{cwd: "/checkout", out: out}}

	cliCtx := cli.NewContext(nil, nil, nil)
	cliCtx.Context = issueContext(t, "Issue number: None (None)")
	require.NoError(t, iCmd.action(cliCtx))
	assert.Equal(t, "None\n", out.String())
}

func TestIssueCommand_action_unexpectedOutput_fails(t *testing.T) {
	out := &bytes.Buffer{}
	iCmd := issueCmd{commonCmd{cwd: "/checkout", out: out}}

	cliCtx := cli.NewContext(nil, nil, nil)
	cliCtx.Context = issueContext(t, "bogus")
	err := iCmd.action(cliCtx)
	require.Error(t, err)
	assert.Empty(t, out.String())
}
