package insight

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvKeyAllowed(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"PATH", true},
		{"Path", true},
		{"HOME", true},
		{"LC_ALL", true},
		{"XDG_CONFIG_HOME", true},
		{"SSL_CERT_FILE", true},
		{"SLACK_BOT_TOKEN", false},
		{"ANTHROPIC_API_KEY", false},
		{"PATHOLOGICAL", false},
		{"AWS_SECRET_ACCESS_KEY", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := envKeyAllowed(tt.key); got != tt.want {
				t.Errorf("envKeyAllowed(%q) = %v, want %v",
					tt.key, got, tt.want)
			}
		})
	}
}

func TestCleanEnv_DropsSecrets(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-secret")
	t.Setenv("HOME", "/home/tester")

	env := cleanEnv()
	joined := strings.Join(env, "\n")
	assert.NotContains(t, joined, "xoxb-secret")
	assert.Contains(t, env, "HOME=/home/tester")
	assert.Contains(t, env, "CLAUDE_NO_SOUND=1")
}

func TestParseCommand(t *testing.T) {
	args, err := ParseCommand(DefaultAgentCommand)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"claude", "-p", "--output-format", "json"}, args)

	args, err = ParseCommand(`codex exec --model "gpt 5"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"codex", "exec", "--model", "gpt 5"}, args)

	_, err = ParseCommand("   ")
	assert.Error(t, err)
}

func TestUnwrapAgentOutput(t *testing.T) {
	tests := []struct {
		name        string
		out         string
		wantContent string
		wantModel   string
	}{
		{
			"claude envelope",
			`{"type":"result","result":"[{\"team\":\"Eng\"}]","model":"m-1"}`,
			`[{"team":"Eng"}]`, "m-1",
		},
		{
			"raw array",
			"  [{\"team\":\"Eng\"}]\n",
			`[{"team":"Eng"}]`, "",
		},
		{
			"envelope without result",
			`{"insights":[]}`,
			`{"insights":[]}`, "",
		},
		{"plain text", "hello\n", "hello", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, model := unwrapAgentOutput([]byte(tt.out))
			if content != tt.wantContent {
				t.Errorf("content = %q, want %q", content, tt.wantContent)
			}
			if model != tt.wantModel {
				t.Errorf("model = %q, want %q", model, tt.wantModel)
			}
		})
	}
}

func TestRunAgent_EchoesPrompt(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := RunAgent(ctx, []string{"sh", "-c", "cat"}, "hello agent")
	require.NoError(t, err)
	assert.Equal(t, "hello agent", res.Content)
	assert.Equal(t, "sh", res.Agent)
}

func TestRunAgent_Failures(t *testing.T) {
	ctx := context.Background()

	_, err := RunAgent(ctx, nil, "x")
	assert.Error(t, err)

	_, err = RunAgent(ctx,
		[]string{"teampulse-no-such-agent-binary"}, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	if runtime.GOOS == "windows" {
		return
	}
	_, err = RunAgent(ctx, []string{"sh", "-c", "echo boom >&2; exit 3"}, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = RunAgent(ctx, []string{"sh", "-c", "true"}, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty result")
}
