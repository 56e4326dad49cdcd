package common

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Confirmer asks the operator yes/no questions between deploy phases.
// AssumeYes turns every prompt into an automatic "yes" for unattended runs.
type Confirmer struct {
	In        io.Reader
	Out       io.Writer
	AssumeYes bool

	reader *bufio.Reader
}

func NewConfirmer(assumeYes bool) *Confirmer {
	return &Confirmer{In: os.Stdin, Out: os.Stdout, AssumeYes: assumeYes}
}

// Confirm prints the question and reads a y/n answer. Anything other than
// "y"/"yes" counts as no; a read error counts as no. One buffered reader is
// shared across prompts: with piped input it may buffer past the first
// newline, and a fresh reader per call would drop the later answers.
func (c *Confirmer) Confirm(question string) bool {
	if c.AssumeYes {
		return true
	}
	if c.reader == nil {
		c.reader = bufio.NewReader(c.In)
	}
	fmt.Fprintf(c.Out, "%s [y/N]: ", question)
	line, err := c.reader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
