package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/puntazo/puntazo/internal/gate"
)

// linePrompter reads passphrases one line at a time. An empty line or end
// of input dismisses the prompt.
type linePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p linePrompter) Prompt(_ context.Context, scope gate.Scope, attempt int) (string, error) {
	fmt.Fprintf(p.out, "Passphrase for %s/%s (attempt %d of %d, empty to cancel): ", scope.Court, scope.Side, attempt, gate.MaxAttempts)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		fmt.Fprintln(p.out)
		return "", gate.ErrDismissed
	}
	return line, nil
}
