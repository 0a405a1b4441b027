package whisper

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error
}

// diagnosticTailLimit bounds how many stderr lines a tool error carries.
const diagnosticTailLimit = 20

type commandExecutor struct{}

// NewCommandExecutor returns the production executor backed by os/exec.
func NewCommandExecutor() Executor {
	return commandExecutor{}
}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	// diagnostics is written only by the stderr goroutine and read after
	// both scanners finish.
	var diagnostics []string
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, onStdout)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, func(line string) {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				diagnostics = append(diagnostics, trimmed)
				if len(diagnostics) > diagnosticTailLimit {
					diagnostics = diagnostics[1:]
				}
			}
			if onStderr != nil {
				onStderr(line)
			}
		})
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if len(diagnostics) > 0 {
			return fmt.Errorf("%s: %w: %s", binary, err, strings.Join(diagnostics, "; "))
		}
		return fmt.Errorf("%s: %w", binary, err)
	}
	return nil
}

func scanLines(r io.Reader, forward func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if forward != nil {
			forward(scanner.Text())
		}
	}
}
