package backend

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Complete waits for output pipes after the
// process is killed on cancellation.
const waitDelay = 5 * time.Second

// CLICompleter runs an external command-line program once per prompt. The
// prompt is appended as the last argument and stdout is the reply.
type CLICompleter struct {
	command string
	args    []string
}

func NewCLICompleter(command string, args []string) *CLICompleter {
	return &CLICompleter{command: command, args: args}
}

func (s *CLICompleter) Name() string {
	return "cli"
}

func (s *CLICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if s.command == "" {
		return "", fmt.Errorf("cli transport: command not configured")
	}

	argv := make([]string, 0, len(s.args)+1)
	argv = append(argv, s.args...)
	argv = append(argv, prompt)

	cmd := exec.CommandContext(ctx, s.command, argv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", s.command, err, msg)
		}
		return "", fmt.Errorf("%s: %w", s.command, err)
	}

	return stdout.String(), nil
}
