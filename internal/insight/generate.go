package insight

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/tidwall/gjson"
)

// DefaultAgentCommand runs the claude CLI in print mode with a
// JSON envelope.
const DefaultAgentCommand = "claude -p --output-format json"

// Result holds the output from an agent invocation.
type Result struct {
	Content string
	Agent   string
	Model   string
}

// GenerateFunc is the signature for agent invocation, allowing
// tests to substitute a stub.
type GenerateFunc func(
	ctx context.Context, command []string, prompt string,
) (Result, error)

// ParseCommand splits a shell-style command line such as
// `claude -p --output-format json` into argv.
func ParseCommand(cmdline string) ([]string, error) {
	args, err := shlex.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("parsing agent command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("agent command is empty")
	}
	return args, nil
}

// allowedKeyPrefixes lists uppercase environment keys passed to
// agent subprocesses. Entries ending in _ match as prefixes.
var allowedKeyPrefixes = []string{
	"PATH",
	"HOME", "USERPROFILE",
	"USER", "USERNAME", "LOGNAME",
	"LANG", "LC_",
	"TERM",
	"TMPDIR", "TEMP", "TMP",
	"XDG_",
	"SSL_CERT_",
	"HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY",
	"SYSTEMROOT", "COMSPEC", "PATHEXT", "APPDATA", "LOCALAPPDATA",
}

func envKeyAllowed(key string) bool {
	upper := strings.ToUpper(key)
	for _, p := range allowedKeyPrefixes {
		if strings.HasSuffix(p, "_") {
			if strings.HasPrefix(upper, p) {
				return true
			}
		} else if upper == p {
			return true
		}
	}
	return false
}

// cleanEnv keeps the Slack token and other secrets out of the
// agent's environment.
func cleanEnv() []string {
	env := os.Environ()
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		k, _, _ := strings.Cut(e, "=")
		if envKeyAllowed(k) {
			filtered = append(filtered, e)
		}
	}
	return append(filtered, "CLAUDE_NO_SOUND=1")
}

// RunAgent executes command with the prompt on stdin. When stdout
// is a JSON envelope with a "result" string (claude's
// --output-format json), the result is unwrapped; otherwise the raw
// stdout is returned.
func RunAgent(
	ctx context.Context, command []string, prompt string,
) (Result, error) {
	if len(command) == 0 {
		return Result{}, fmt.Errorf("agent command is empty")
	}
	agent := filepath.Base(command[0])
	path, err := exec.LookPath(command[0])
	if err != nil {
		return Result{}, fmt.Errorf("%s CLI not found: %w", agent, err)
	}

	cmd := exec.CommandContext(ctx, path, command[1:]...)
	cmd.Env = cleanEnv()
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil && ctx.Err() != nil {
		return Result{}, fmt.Errorf(
			"%s CLI cancelled: %w", agent, ctx.Err(),
		)
	}

	content, model := unwrapAgentOutput(stdout.Bytes())
	if content != "" && runErr == nil {
		return Result{Content: content, Agent: agent, Model: model}, nil
	}
	if runErr != nil {
		return Result{}, fmt.Errorf(
			"%s CLI failed: %w\nstderr: %s",
			agent, runErr, stderr.String(),
		)
	}
	return Result{}, fmt.Errorf("%s returned empty result", agent)
}

func unwrapAgentOutput(out []byte) (content, model string) {
	trimmed := bytes.TrimSpace(out)
	if gjson.ValidBytes(trimmed) {
		res := gjson.GetBytes(trimmed, "result")
		if res.Type == gjson.String && strings.TrimSpace(res.Str) != "" {
			return res.Str, gjson.GetBytes(trimmed, "model").String()
		}
	}
	return string(trimmed), ""
}
