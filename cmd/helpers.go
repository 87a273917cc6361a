package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/KaramelBytes/statloom/internal/ai"
	cfgpkg "github.com/KaramelBytes/statloom/internal/config"
	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/KaramelBytes/statloom/internal/runner"
	"github.com/KaramelBytes/statloom/internal/session"
	"github.com/KaramelBytes/statloom/internal/utils"
)

// buildService wires the model client and script runner from configuration.
// An incomplete API configuration is reported here, before any dataset work.
func buildService(c *cfgpkg.Config, log zerolog.Logger) (*session.Service, error) {
	client, err := ai.NewClientFromConfig(c, log)
	if err != nil {
		return nil, err
	}
	return session.NewService(c, client, runner.NewFromConfig(c, log), log), nil
}

type outputOptions struct {
	JSON       bool
	Quiet      bool
	OutputPath string
	Writer     io.Writer
}

// writeResult prints a turn as labelled sections or as the JSON record.
func writeResult(res session.Result, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	if opts.JSON {
		b, err := utils.PrettyJSON(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(b))
	} else if opts.Quiet {
		fmt.Fprintln(w, res.Response)
	} else {
		writeSection(w, "Reasoning", res.Reasoning)
		writeSection(w, "Response", res.Response)
		writeSection(w, "R Code", res.Code)
		writeSection(w, "Console", joinNonEmpty(res.Stdout, res.Stderr))
		if res.ArtifactPath != "" {
			fmt.Fprintf(w, "\n✓ Plot saved to %s\n", res.ArtifactPath)
		}
	}

	if opts.OutputPath == "" {
		return nil
	}
	b, err := utils.PrettyJSON(res)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(opts.OutputPath, b, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !opts.Quiet {
		fmt.Fprintf(w, "\n💾 Saved result to %s\n", opts.OutputPath)
	}
	return nil
}

func writeSection(w io.Writer, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	fmt.Fprintf(w, "\n=== %s ===\n", title)
	fmt.Fprintln(w, strings.TrimRight(body, "\n"))
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if s := strings.TrimRight(p, "\n"); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}

// turnError is the error a finished turn should exit with, or nil.
func turnError(res session.Result) error {
	switch {
	case res.Err != nil:
		return res.Err
	case !res.OK():
		return errors.New(res.Error)
	}
	return nil
}

// userHint suggests a fix for errors the user can resolve locally.
func userHint(err error) string {
	var authErr *ai.AuthError
	var rateErr *ai.RateLimitError
	var netErr *ai.NetworkError
	switch {
	case errors.Is(err, cfgpkg.ErrMissing):
		return "set LLM_API_URL, LLM_API_KEY and LLM_MODEL_NAME in .env, or run `statloom config set api_key <key>`"
	case errors.Is(err, cfgpkg.ErrPlaceholder):
		return "replace YOUR_API_KEY_HERE in your .env file with a real key"
	case errors.Is(err, dataset.ErrUnsupportedFormat):
		return "convert the file to CSV, TSV or XLSX"
	case errors.Is(err, runner.ErrInterpreterNotFound):
		return "install R so Rscript is on PATH, or set `interpreter` in the config"
	case errors.As(err, &authErr):
		return "check that the API key is valid for this endpoint"
	case errors.As(err, &rateErr):
		return "the provider is rate limiting requests; wait and try again"
	case errors.As(err, &netErr):
		return "check api_url and your network connection"
	}
	return ""
}
