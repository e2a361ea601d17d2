package main

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"terminated by END", "hello\nworld\nEND\n", []string{"hello\nworld"}},
		{"sentinel ignores case and space", "a\n  end  \nb\nEnd\n", []string{"a", "b"}},
		{"slash command is immediate", "/status\nnext\nEND\n", []string{"/status", "next"}},
		{"code command is immediate", "  CODE:read:main.py\n", []string{"CODE:read:main.py"}},
		{"slash inside a message is not immediate", "see\n/path\nEND\n", []string{"see\n/path"}},
		{"EOF ends the last message", "trailing text", []string{"trailing text"}},
		{"CRLF line endings", "one\r\ntwo\r\nEND\r\n", []string{"one\ntwo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tt.input))
			var got []string
			for {
				text, err := readInput(r)
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				got = append(got, text)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadInputEmptyStream(t *testing.T) {
	_, err := readInput(bufio.NewReader(strings.NewReader("")))
	assert.ErrorIs(t, err, io.EOF)
}
