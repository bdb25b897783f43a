package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/babelcloud/screenrec/internal/recorder"
)

// regionPrompter asks for a capture region on an interactive terminal.
type regionPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newRegionPrompter(in io.Reader, out io.Writer) *regionPrompter {
	return &regionPrompter{in: bufio.NewReader(in), out: out}
}

// Prompt reads "width x height" and then "x, y".
func (p *regionPrompter) Prompt() (recorder.Region, error) {
	var r recorder.Region
	var err error

	fmt.Fprint(p.out, "Enter resolution (width x height): ")
	if r.Width, r.Height, err = p.readPair(); err != nil {
		return r, errors.Wrap(err, "read resolution")
	}

	fmt.Fprint(p.out, "Enter offset (x, y): ")
	if r.OffsetX, r.OffsetY, err = p.readPair(); err != nil {
		return r, errors.Wrap(err, "read offset")
	}
	return r, nil
}

// readPair reads two integers from one line. They may be separated by
// spaces, a comma or an "x".
func (p *regionPrompter) readPair() (int, int, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
		return 0, 0, err
	}
	return parsePair(line)
}

func parsePair(s string) (int, int, error) {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == 'x' || r == '\r' || r == '\n'
	})
	if len(fields) != 2 {
		return 0, 0, errors.Errorf("expected two numbers, got %q", strings.TrimSpace(s))
	}
	a, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "parse %q", fields[0])
	}
	b, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "parse %q", fields[1])
	}
	return a, b, nil
}
