package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/statloom/internal/ai"
	"github.com/KaramelBytes/statloom/internal/config"
	"github.com/KaramelBytes/statloom/internal/runner"
)

type fakeChat struct {
	mu        sync.Mutex
	content   string
	reasoning string
	err       error
	calls     int
	got       []ai.Message
}

func (f *fakeChat) Complete(_ context.Context, msgs []ai.Message) (*ai.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.got = msgs
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Completion{Content: f.content, ReasoningContent: f.reasoning}, nil
}

type fakeRunner struct {
	interpErr error
	res       *runner.ExecutionResult
	err       error
	runs      int
	code      string
	sheet     string
}

func (f *fakeRunner) Interpreter() (string, error) {
	if f.interpErr != nil {
		return "", f.interpErr
	}
	return "/usr/bin/Rscript", nil
}

func (f *fakeRunner) Run(_ context.Context, _, code, _, sheet string) (*runner.ExecutionResult, error) {
	f.runs++
	f.code = code
	f.sheet = sheet
	return f.res, f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		APIURL:           "http://127.0.0.1:1/v1/chat/completions",
		APIKey:           "sk-test",
		Model:            "test-model",
		OutputDir:        filepath.Join(t.TempDir(), "output"),
		PromptSampleRows: 5,
	}
}

func testData(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(p, []byte("name,age\nann,31\nbob,45\n"), 0o644))
	return p
}

func newTestService(cfg *config.Config, chat ChatClient, exec ScriptRunner) *Service {
	return NewService(cfg, chat, exec, zerolog.Nop(), WithIDGenerator(func() string { return "call-1" }))
}

func TestProcessRequestWithoutCode(t *testing.T) {
	chat := &fakeChat{content: `{"reasoning_content":"x","content":"Here is a summary","r_code":""}`}
	exec := &fakeRunner{interpErr: errors.New("must not be resolved")}
	svc := newTestService(testConfig(t), chat, exec)

	res := svc.ProcessRequest(context.Background(), Request{Prompt: "summarize the data", DataPath: testData(t)})
	assert.Equal(t, Result{CallID: "call-1", Reasoning: "x", Response: "Here is a summary", Outcome: "structured"}, res)
	assert.True(t, res.OK())
	assert.Equal(t, 0, exec.runs)
}

func TestProcessRequestRunsCode(t *testing.T) {
	chat := &fakeChat{content: `{"reasoning_content":"x","content":"done","r_code":"summary(data)"}`}
	exec := &fakeRunner{res: &runner.ExecutionResult{Stdout: "Min: 1 Max: 99\n"}}
	svc := newTestService(testConfig(t), chat, exec)

	res := svc.ProcessRequest(context.Background(), Request{Prompt: "stats", DataPath: testData(t)})
	assert.Contains(t, res.Stdout, "Min: 1 Max: 99")
	assert.Empty(t, res.ArtifactPath)
	assert.Empty(t, res.Stderr)
	assert.Equal(t, "summary(data)", exec.code)
}

func TestProcessRequestPassesSheetToRunner(t *testing.T) {
	chat := &fakeChat{content: `{"content":"done","r_code":"summary(data)"}`}
	exec := &fakeRunner{res: &runner.ExecutionResult{}}
	svc := newTestService(testConfig(t), chat, exec)

	svc.ProcessRequest(context.Background(), Request{Prompt: "stats", DataPath: testData(t), Sheet: "Measurements"})
	assert.Equal(t, "Measurements", exec.sheet)
}

func TestProcessRequestReportsArtifact(t *testing.T) {
	chat := &fakeChat{content: `{"reasoning_content":"x","content":"plot made","r_code":"png(args[2]); plot(data$age); dev.off()"}`}
	exec := &fakeRunner{res: &runner.ExecutionResult{ArtifactPath: "output/plot-call-1.png"}}
	svc := newTestService(testConfig(t), chat, exec)

	res := svc.ProcessRequest(context.Background(), Request{Prompt: "plot age", DataPath: testData(t)})
	assert.Equal(t, "output/plot-call-1.png", res.ArtifactPath)
	assert.Equal(t, "plot made", res.Response)
}

func TestProcessRequestMissingAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIKey = ""
	chat := &fakeChat{}
	exec := &fakeRunner{}
	svc := newTestService(cfg, chat, exec)

	res := svc.ProcessRequest(context.Background(), Request{Prompt: "hi", DataPath: testData(t)})
	assert.False(t, res.OK())
	assert.Contains(t, res.Error, config.ErrMissing.Error())
	assert.ErrorIs(t, res.Err, config.ErrMissing)
	assert.Equal(t, Result{CallID: "call-1", Error: res.Error, Err: res.Err}, res)
	assert.Equal(t, 0, chat.calls)
	assert.Equal(t, 0, exec.runs)
	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessRequestPlaceholderKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIKey = config.PlaceholderAPIKey
	chat := &fakeChat{}
	res := newTestService(cfg, chat, &fakeRunner{}).ProcessRequest(context.Background(), Request{Prompt: "hi", DataPath: testData(t)})
	assert.Contains(t, res.Error, config.ErrPlaceholder.Error())
	assert.Equal(t, 0, chat.calls)
}

func TestProcessRequestInterpreterNotFound(t *testing.T) {
	chat := &fakeChat{content: `{"reasoning_content":"x","content":"done","r_code":"summary(data)"}`}
	exec := &fakeRunner{interpErr: runner.ErrInterpreterNotFound}
	svc := newTestService(testConfig(t), chat, exec)

	res := svc.ProcessRequest(context.Background(), Request{Prompt: "stats", DataPath: testData(t)})
	assert.True(t, res.OK(), "conversational reply is kept")
	assert.Equal(t, "done", res.Response)
	assert.Equal(t, "summary(data)", res.Code)
	assert.Contains(t, res.Stderr, runner.ErrInterpreterNotFound.Error())
	assert.ErrorIs(t, res.ExecErr, runner.ErrInterpreterNotFound)
	assert.NoError(t, res.Err)
	assert.Equal(t, 0, exec.runs)
}

func TestProcessRequestExecutionFailure(t *testing.T) {
	chat := &fakeChat{content: `{"reasoning_content":"x","content":"done","r_code":"stop('boom')"}`}
	exec := &fakeRunner{
		res: &runner.ExecutionResult{Stdout: "partial\n", Stderr: "Error: boom\n", ExitCode: 1},
		err: &runner.ExecutionError{ExitCode: 1, Stderr: "Error: boom\n"},
	}
	svc := newTestService(testConfig(t), chat, exec)

	res := svc.ProcessRequest(context.Background(), Request{Prompt: "stats", DataPath: testData(t)})
	assert.True(t, res.OK())
	assert.Equal(t, "done", res.Response)
	assert.Equal(t, "partial\n", res.Stdout)
	assert.True(t, strings.HasPrefix(res.Stderr, "Failed to execute R code: "), res.Stderr)
	assert.Contains(t, res.Stderr, "Error: boom")
	var execErr *runner.ExecutionError
	assert.ErrorAs(t, res.ExecErr, &execErr)
}

func TestProcessRequestRunnerIOError(t *testing.T) {
	chat := &fakeChat{content: `{"content":"done","r_code":"summary(data)"}`}
	exec := &fakeRunner{err: &runner.IOError{Op: "write script", Path: "x.R", Err: os.ErrPermission}}
	res := newTestService(testConfig(t), chat, exec).ProcessRequest(context.Background(), Request{Prompt: "p", DataPath: testData(t)})
	assert.Contains(t, res.Stderr, "Failed to execute R code: write script x.R")
	assert.Empty(t, res.Stdout)
}

func TestProcessRequestUnsupportedData(t *testing.T) {
	p := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	chat := &fakeChat{}
	res := newTestService(testConfig(t), chat, &fakeRunner{}).ProcessRequest(context.Background(), Request{Prompt: "p", DataPath: p})
	assert.Contains(t, res.Error, "unsupported data format")
	assert.Equal(t, 0, chat.calls)
}

func TestProcessRequestModelError(t *testing.T) {
	apiErr := &ai.ServerError{HTTPError: &ai.HTTPError{StatusCode: 503, Body: "overloaded"}}
	chat := &fakeChat{err: apiErr}
	exec := &fakeRunner{}
	res := newTestService(testConfig(t), chat, exec).ProcessRequest(context.Background(), Request{Prompt: "p", DataPath: testData(t)})
	assert.Equal(t, apiErr.Error(), res.Error)
	var sErr *ai.ServerError
	assert.ErrorAs(t, res.Err, &sErr)
	assert.Empty(t, res.Response)
	assert.Equal(t, 1, chat.calls, "no retries")
	assert.Equal(t, 0, exec.runs)
}

func TestProcessRequestFallbackReply(t *testing.T) {
	raw := "Sure:\n```r\nsummary(data)\n```"
	chat := &fakeChat{content: raw, reasoning: "envelope thoughts"}
	exec := &fakeRunner{res: &runner.ExecutionResult{Stdout: "ok"}}
	res := newTestService(testConfig(t), chat, exec).ProcessRequest(context.Background(), Request{Prompt: "p", DataPath: testData(t)})
	assert.Equal(t, "fallback", res.Outcome)
	assert.Equal(t, raw, res.Response)
	assert.Equal(t, "envelope thoughts", res.Reasoning)
	assert.Equal(t, "summary(data)", exec.code)
}

func TestProcessRequestSendsHistoryAndSample(t *testing.T) {
	chat := &fakeChat{content: `{"content":"second answer"}`}
	svc := newTestService(testConfig(t), chat, &fakeRunner{})
	hist := History{}.Append("first question", "first answer")

	res := svc.ProcessRequest(context.Background(), Request{Prompt: "second question", DataPath: testData(t), History: hist})
	require.True(t, res.OK())
	require.Len(t, chat.got, 4)
	assert.Equal(t, ai.RoleSystem, chat.got[0].Role)
	assert.Contains(t, chat.got[0].Content, "| ann | 31 |")
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "first question"}, chat.got[1])
	assert.Equal(t, ai.Message{Role: ai.RoleAssistant, Content: "first answer"}, chat.got[2])
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "second question"}, chat.got[3])
}

func TestHistoryAppendIsImmutable(t *testing.T) {
	base := make(History, 0, 10).Append("q1", "a1")
	a := base.Append("q2", "a2")
	b := base.Append("q3", "a3")
	assert.Len(t, base, 2)
	assert.Equal(t, "q2", a[2].Content)
	assert.Equal(t, "q3", b[2].Content)
}

const fakeInterpreter = `#!/bin/sh
if grep -qF 'png(args[2])' "$1"; then printf 'PNG' > "$3"; fi
if grep -qF 'stop(' "$1"; then echo "Error in eval" >&2; exit 1; fi
echo "Min: 1 Max: 99"
`

// The real runner must leave no script or data file behind on any path.
func TestProcessRequestCleansTempFiles(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreter is a POSIX shell script")
	}
	interp := filepath.Join(t.TempDir(), "Rscript")
	require.NoError(t, os.WriteFile(interp, []byte(fakeInterpreter), 0o755))

	for _, code := range []string{"summary(data)", "png(args[2]); plot(data$age); dev.off()", "stop('boom')"} {
		cfg := testConfig(t)
		cfg.LegacyFilenames = true
		cfg.Interpreter = interp
		cfg.ScriptTimeoutSec = 10
		chat := &fakeChat{content: `{"reasoning_content":"x","content":"done","r_code":` + quote(code) + `}`}
		svc := newTestService(cfg, chat, runner.NewFromConfig(cfg, zerolog.Nop()))

		res := svc.ProcessRequest(context.Background(), Request{Prompt: "p", DataPath: testData(t)})
		require.True(t, res.OK(), res.Error)
		for _, name := range []string{"_temp_generated_script.R", "_temp_for_r.csv"} {
			_, err := os.Stat(filepath.Join(cfg.OutputDir, name))
			assert.True(t, os.IsNotExist(err), "%s left behind after %q", name, code)
		}
		if strings.Contains(code, "png") {
			assert.Equal(t, filepath.Join(cfg.OutputDir, "r_plot.png"), res.ArtifactPath)
		}
		if strings.Contains(code, "stop") {
			assert.Contains(t, res.Stderr, "Error in eval")
		}
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func TestProcessRequestNetworkTimeout(t *testing.T) {
	chat := &fakeChat{err: &ai.NetworkError{URL: "u", Err: context.DeadlineExceeded}}
	res := newTestService(testConfig(t), chat, &fakeRunner{}).ProcessRequest(context.Background(), Request{Prompt: "p", DataPath: testData(t)})
	assert.Contains(t, res.Error, "timed out")
	assert.Empty(t, res.Response)
}
