// Package prompt asks the operator for input on a terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/recipescrape/recipescrape/pkg/errors"
)

// Prompter reads answers line by line from in and writes questions to out.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a Prompter.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

func (p *Prompter) ask(question string) (string, error) {
	if _, err := fmt.Fprint(p.out, question); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errors.Wrap(err, errors.ErrCodeOperationCanceled, "no input available").
			WithComponent("prompt")
	}
	return strings.TrimSpace(line), nil
}

// URL asks for an absolute http or https URL, re-asking up to limit times.
// A limit below one allows a single attempt.
func (p *Prompter) URL(question string, limit int) (string, error) {
	if limit < 1 {
		limit = 1
	}
	var last string
	for i := 0; i < limit; i++ {
		answer, err := p.ask(question)
		if err != nil {
			return "", err
		}
		if ValidURL(answer) {
			return answer, nil
		}
		last = answer
		fmt.Fprintf(p.out, "%q is not a valid URL.\n", answer)
	}
	return "", errors.NewError(errors.ErrCodeInvalidValue, "no valid URL entered").
		WithComponent("prompt").
		WithContext("last_answer", last).
		WithDetail("attempts", limit)
}

// String asks until a non-empty answer is given.
func (p *Prompter) String(question string) (string, error) {
	for {
		answer, err := p.ask(question)
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
		fmt.Fprintln(p.out, "Blank values are not allowed.")
	}
}

// YesNo asks a y/n question. An empty answer returns def.
func (p *Prompter) YesNo(question string, def bool) (bool, error) {
	for {
		answer, err := p.ask(question)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintf(p.out, "%q is not a valid yes/no response.\n", answer)
	}
}

// Println writes a line to the prompter's output.
func (p *Prompter) Println(a ...interface{}) {
	fmt.Fprintln(p.out, a...)
}

// ValidURL reports whether s is an absolute http or https URL with a host.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
