package shell

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	perrors "powerexec/cli/internal/errors"
	"powerexec/cli/internal/rc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestRunPassesCommandAsSingleArgument(t *testing.T) {
	requireBinary(t, "echo")
	r := &Runner{Binary: "echo", Timeout: 5 * time.Second, Logger: zaptest.NewLogger(t)}

	res, err := r.Run(context.Background(), "DSPLIBL OUTPUT(*)")
	require.NoError(t, err)
	assert.Equal(t, rc.Success, res.RC)
	assert.Equal(t, "DSPLIBL OUTPUT(*)", strings.TrimSpace(res.Stdout))
}

func TestRunReportsExitStatus(t *testing.T) {
	requireBinary(t, "false")
	r := &Runner{Binary: "false", Logger: zaptest.NewLogger(t)}

	res, err := r.Run(context.Background(), "WRKACTJOB")
	require.NoError(t, err)
	assert.Equal(t, rc.Code(1), res.RC)
	assert.True(t, res.RC.Failed())
}

func TestRunTimeout(t *testing.T) {
	requireBinary(t, "sleep")
	r := &Runner{Binary: "sleep", Timeout: 50 * time.Millisecond, Logger: zaptest.NewLogger(t)}

	res, err := r.Run(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, rc.Unexpected, res.RC)
	assert.Contains(t, res.Stderr, "timed out")
}

func TestRunMissingBinary(t *testing.T) {
	r := NewRunner(zaptest.NewLogger(t))
	r.Binary = "powerexec-no-such-binary"

	_, err := r.Run(context.Background(), "DSPLIBL")
	require.Error(t, err)
	assert.True(t, perrors.IsKind(err, perrors.DependencyUnavailable))
}

func TestLimitedBuffer(t *testing.T) {
	var b limitedBuffer
	chunk := strings.Repeat("x", 1<<20)
	for i := 0; i < 10; i++ {
		n, err := b.Write([]byte(chunk))
		require.NoError(t, err)
		assert.Equal(t, len(chunk), n)
	}
	assert.True(t, strings.HasSuffix(b.String(), "[output truncated]"))
	assert.Equal(t, maxOutput, b.buf.Len())
}
