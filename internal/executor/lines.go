package executor

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"
)

// Lines yields r line by line with line terminators (LF or CRLF) removed.
// Lines have no length limit, so one huge record never hides the ones after
// it. Reading stops at EOF or on the first read error; a trailing partial
// line is still yielded.
func Lines(r io.Reader) iter.Seq[string] {
	return func(yield func(string) bool) {
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				line = strings.TrimSuffix(line, "\n")
				line = strings.TrimSuffix(line, "\r")
				if !yield(line) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Warn("stopped reading command output", "error", err)
				}
				return
			}
		}
	}
}
