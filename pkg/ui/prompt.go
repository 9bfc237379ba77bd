package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput is returned when the input stream ends before an answer.
var ErrNoInput = errors.New("no input")

// ConsolePrompter asks questions on a line-oriented console. Secrets are
// read without echo when the input is a terminal.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

// NewConsolePrompter creates a prompter over stdin and stdout.
func NewConsolePrompter() *ConsolePrompter {
	fd := int(os.Stdin.Fd())
	return &ConsolePrompter{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
		fd:  fd,
		tty: term.IsTerminal(fd),
	}
}

// NewPrompter creates a prompter over arbitrary streams. Secrets are read
// as plain lines.
func NewPrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(in), out: out, fd: -1}
}

// Ask prints label and returns the trimmed answer line.
func (p *ConsolePrompter) Ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Secret asks for a value without echoing it.
func (p *ConsolePrompter) Secret(label string) (string, error) {
	if !p.tty {
		return p.Ask(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Say prints one line.
func (p *ConsolePrompter) Say(msg string) {
	fmt.Fprintln(p.out, msg)
}
