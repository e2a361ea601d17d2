package main

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// endSentinel terminates multi-line input.
const endSentinel = "end"

// readInput collects lines until a line equal to END (any case, surrounding
// space ignored) or EOF. A first line starting with "/" or "code:" is
// returned immediately. io.EOF is returned only when nothing was read.
func readInput(r *bufio.Reader) (string, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		eof := errors.Is(err, io.EOF)
		if eof && line == "" {
			if len(lines) == 0 {
				return "", io.EOF
			}
			break
		}

		line = strings.TrimRight(line, "\r\n")
		if strings.EqualFold(strings.TrimSpace(line), endSentinel) {
			break
		}
		if len(lines) == 0 && isImmediate(line) {
			return strings.TrimSpace(line), nil
		}
		lines = append(lines, line)
		if eof {
			break
		}
	}
	return strings.Join(lines, "\n"), nil
}

func isImmediate(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "/") || strings.HasPrefix(strings.ToLower(trimmed), "code:")
}
