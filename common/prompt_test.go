package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfirmAnswers(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"n\n", false},
		{"no\n", false},
		{"\n", false},
		{"whatever\n", false},
		{"", false}, // closed stdin counts as no
	}
	for _, tc := range cases {
		var out bytes.Buffer
		c := &Confirmer{In: strings.NewReader(tc.input), Out: &out}
		assert.Equalf(t, tc.want, c.Confirm("Proceed?"), "input %q", tc.input)
		assert.Contains(t, out.String(), "Proceed?")
	}
}

func TestConfirmSequentialAnswersOnPipedInput(t *testing.T) {
	// all answers arrive on one pipe; later prompts must still see them
	var out bytes.Buffer
	c := &Confirmer{In: strings.NewReader("y\nn\nyes\n"), Out: &out}
	assert.True(t, c.Confirm("first?"))
	assert.False(t, c.Confirm("second?"))
	assert.True(t, c.Confirm("third?"))
	assert.False(t, c.Confirm("fourth?")) // input exhausted: no
}

func TestConfirmAssumeYesSkipsPrompt(t *testing.T) {
	var out bytes.Buffer
	c := &Confirmer{In: strings.NewReader(""), Out: &out, AssumeYes: true}
	assert.True(t, c.Confirm("Proceed?"))
	assert.Empty(t, out.String())
}
