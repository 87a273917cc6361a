package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/KaramelBytes/statloom/internal/ai"
	"github.com/KaramelBytes/statloom/internal/config"
	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/KaramelBytes/statloom/internal/prompt"
	"github.com/KaramelBytes/statloom/internal/reply"
	"github.com/KaramelBytes/statloom/internal/runner"
	"github.com/KaramelBytes/statloom/internal/utils"
)

// ChatClient sends one chat completion request.
type ChatClient interface {
	Complete(ctx context.Context, messages []ai.Message) (*ai.Completion, error)
}

// ScriptRunner resolves the interpreter and runs generated code.
type ScriptRunner interface {
	Interpreter() (string, error)
	Run(ctx context.Context, callID, code, dataPath, sheet string) (*runner.ExecutionResult, error)
}

// Option customises a Service.
type Option func(*Service)

// WithIDGenerator replaces the uuid call-ID source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// Service runs analysis turns. It holds no per-turn state.
type Service struct {
	cfg    *config.Config
	chat   ChatClient
	exec   ScriptRunner
	logger zerolog.Logger
	newID  func() string
}

func NewService(cfg *config.Config, chat ChatClient, exec ScriptRunner, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{cfg: cfg, chat: chat, exec: exec, logger: logger, newID: uuid.NewString}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ProcessRequest runs sample, prompt, model call, interpretation and, when the reply
// carries code, the script. Failures are reported in the Result, never returned.
func (s *Service) ProcessRequest(ctx context.Context, req Request) Result {
	callID := s.newID()
	log := s.logger.With().Str("call_id", callID).Logger()

	if s.cfg == nil {
		return errorResult(callID, config.ErrMissing)
	}
	if err := utils.EnsureDir(s.cfg.OutputDir); err != nil {
		return errorResult(callID, &runner.IOError{Op: "create output dir", Path: s.cfg.OutputDir, Err: err})
	}
	if err := s.cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("configuration invalid")
		return errorResult(callID, err)
	}

	tbl, err := dataset.OpenWith(req.DataPath, dataset.Options{Limit: s.cfg.PromptSampleRows, Sheet: req.Sheet})
	if err != nil {
		log.Warn().Err(err).Str("data", req.DataPath).Msg("dataset sample failed")
		return errorResult(callID, err)
	}

	msgs := prompt.Build(tbl.Markdown(), req.History.Messages(), req.Prompt)
	log.Debug().
		Int("messages", len(msgs)).
		Interface("tokens", prompt.EstimateTokens(msgs)).
		Str("sample", tbl.Summary()).
		Msg("prompt built")

	comp, err := s.chat.Complete(ctx, msgs)
	if err != nil {
		log.Error().Err(err).Msg("model call failed")
		return errorResult(callID, err)
	}

	rep := reply.Interpret(comp.Content, comp.ReasoningContent)
	ev := log.Info()
	if rep.Outcome == reply.Fallback {
		ev = log.Warn().Str("problem", rep.Problem)
	}
	ev.Str("outcome", rep.Outcome.String()).Bool("has_code", rep.Code != "").Str("request_id", comp.RequestID).Msg("reply interpreted")

	res := Result{
		CallID:    callID,
		Reasoning: rep.Reasoning,
		Response:  rep.Text,
		Code:      rep.Code,
		Outcome:   rep.Outcome.String(),
	}
	if rep.Code == "" {
		return res
	}

	if _, err := s.exec.Interpreter(); err != nil {
		log.Warn().Err(err).Msg("interpreter unavailable")
		res.Stderr = err.Error()
		res.ExecErr = err
		return res
	}

	out, err := s.exec.Run(ctx, callID, rep.Code, req.DataPath, req.Sheet)
	if out != nil {
		res.Stdout = out.Stdout
		res.ArtifactPath = out.ArtifactPath
		res.Stderr = out.Stderr
	}
	if err != nil {
		res.Stderr = executionFailure(err, out)
		res.ExecErr = err
	}
	return res
}

func executionFailure(err error, out *runner.ExecutionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Failed to execute R code: %v", err)
	var execErr *runner.ExecutionError
	stderr := ""
	if errors.As(err, &execErr) {
		stderr = execErr.Stderr
	} else if out != nil {
		stderr = out.Stderr
	}
	if s := strings.TrimRight(stderr, "\n"); s != "" {
		b.WriteString("\n")
		b.WriteString(s)
	}
	return b.String()
}
