package scripting

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func scriptDir(t *testing.T, sub, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, sub, name), []byte(body), 0o644))
	return dir
}

const policy = `
function judge_violation(ctx)
  if ctx.reason == "TeleportDetected" then
    return { action = "kick" }
  end
  if ctx.count >= ctx.kick_after then
    return { action = "kick" }
  end
  return { action = "correct" }
end
`

func TestJudgeViolation(t *testing.T) {
	e, err := NewEngine(scriptDir(t, "movement", "policy.lua", policy), zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, ActionCorrect, e.JudgeViolation(ViolationContext{Reason: "SpeedHack", Count: 1, KickAfter: 3}))
	assert.Equal(t, ActionKick, e.JudgeViolation(ViolationContext{Reason: "SpeedHack", Count: 3, KickAfter: 3}))
	assert.Equal(t, ActionKick, e.JudgeViolation(ViolationContext{Reason: "TeleportDetected", Count: 1, KickAfter: 3}))
}

func TestJudgeViolationFallbacks(t *testing.T) {
	cases := map[string]string{
		"missing function": `x = 1`,
		"runtime error":    `function judge_violation(ctx) error("boom") end`,
		"non-table":        `function judge_violation(ctx) return 7 end`,
		"unknown action":   `function judge_violation(ctx) return { action = "ban" } end`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			e, err := NewEngine(scriptDir(t, "movement", "p.lua", body), zap.NewNop())
			require.NoError(t, err)
			defer e.Close()
			assert.Equal(t, ActionCorrect, e.JudgeViolation(ViolationContext{Reason: "SpeedHack", Count: 99}))
		})
	}
}

func TestNewEngineMissingDirAndBadScript(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "none"), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ActionCorrect, e.JudgeViolation(ViolationContext{}))
	e.Close()

	_, err = NewEngine(scriptDir(t, "core", "bad.lua", "function ("), zap.NewNop())
	assert.Error(t, err)
}

func TestJudgeViolationConcurrent(t *testing.T) {
	e, err := NewEngine(scriptDir(t, "movement", "policy.lua", policy), zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.JudgeViolation(ViolationContext{Reason: "SpeedHack", Count: n, KickAfter: 8})
			}
		}(i)
	}
	wg.Wait()
}
