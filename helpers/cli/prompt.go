// Package cli runs interactive line input: go-prompt on terminal, plain line reader on pipe.
package cli

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
)

// MainLoop calls exec for every input line until EOF.
// On terminal go-prompt handles editing and exits process on Ctrl-D.
func MainLoop(tag string, in *os.File, exec func(line string), complete prompt.Completer) error {
	if isatty.IsTerminal(in.Fd()) {
		if complete == nil {
			complete = func(prompt.Document) []prompt.Suggest { return nil }
		}
		prompt.New(exec, complete,
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		).Run()
		return nil
	}
	return ReadLines(in, exec)
}

// ReadLines is non-interactive part of MainLoop, exec receives lines without \r\n.
func ReadLines(r io.Reader, exec func(line string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		exec(strings.TrimRight(scanner.Text(), "\r"))
	}
	return errors.Annotate(scanner.Err(), "cli read")
}
