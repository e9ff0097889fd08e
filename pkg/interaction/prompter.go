// pkg/interaction/prompter.go

// Package interaction asks the operator for configuration values. It is only
// used before a run starts; step bodies never prompt.
package interaction

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Prompter reads answers from In and writes prompts to Out.
type Prompter struct {
	in    *bufio.Reader
	out   io.Writer
	fd    int
	isTTY bool
}

// New returns a Prompter. Secrets are read without echo when in is a terminal.
func New(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.isTTY = true
	}
	return p
}

// Stdio returns a Prompter on the process's stdin and stdout.
func Stdio() *Prompter {
	return New(os.Stdin, os.Stdout)
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		if err == io.EOF {
			return "", hestia_err.NewUserCancelledError("input closed")
		}
		return "", cerr.Wrap(err, "read input")
	}
	return strings.TrimSpace(line), nil
}

// Input asks for a value, returning def when the answer is empty.
func (p *Prompter) Input(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	text, err := p.readLine()
	if err != nil {
		return "", err
	}
	if text == "" {
		return def, nil
	}
	return text, nil
}

// Validated asks until validate accepts the answer. An empty answer with a
// non-empty def is validated as def.
func (p *Prompter) Validated(label, def string, validate func(string) error) (string, error) {
	for {
		text, err := p.Input(label, def)
		if err != nil {
			return "", err
		}
		if verr := validate(text); verr != nil {
			fmt.Fprintf(p.out, "❌ %v\n", verr)
			zap.L().Debug("Rejected prompt answer", zap.String("label", label), zap.Error(verr))
			continue
		}
		return text, nil
	}
}

// YesNo asks a yes/no question.
func (p *Prompter) YesNo(label string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		fmt.Fprintf(p.out, "%s [%s]: ", label, hint)
		text, err := p.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(text) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}

// Secret asks for a value without echoing it when attached to a terminal.
// Empty answers are rejected.
func (p *Prompter) Secret(label string) (string, error) {
	for {
		fmt.Fprintf(p.out, "%s: ", label)
		var (
			text string
			err  error
		)
		if p.isTTY {
			var b []byte
			b, err = term.ReadPassword(p.fd)
			fmt.Fprintln(p.out)
			if err != nil {
				return "", cerr.Wrap(err, "read secret")
			}
			text = strings.TrimSpace(string(b))
		} else {
			text, err = p.readLine()
			if err != nil {
				return "", err
			}
		}
		if text != "" {
			return text, nil
		}
		fmt.Fprintln(p.out, "Input cannot be empty.")
	}
}

// Port asks for a TCP port number.
func (p *Prompter) Port(label string, def int) (int, error) {
	text, err := p.Validated(label, strconv.Itoa(def), ValidatePort)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(text)
}
