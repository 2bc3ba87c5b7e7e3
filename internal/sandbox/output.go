package sandbox

import (
	"bytes"
	"unicode/utf8"
)

// cappedWriter keeps at most maxLines newline-terminated lines and
// maxBytes bytes of what is written to it. Everything past either cap is
// accepted and silently dropped so the child never blocks on a full pipe.
type cappedWriter struct {
	buf      bytes.Buffer
	maxLines int // 0 means no line cap
	maxBytes int
	lines    int
	full     bool
}

func newCappedWriter(maxLines, maxChars int) *cappedWriter {
	// Worst case UTF-8 is four bytes per character; one extra character's
	// worth lets truncate() notice the overflow.
	return &cappedWriter{maxLines: maxLines, maxBytes: (maxChars + 1) * utf8.UTFMax}
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 && !w.full {
		room := w.maxBytes - w.buf.Len()
		if room <= 0 {
			w.full = true
			break
		}
		chunk := p
		if w.maxLines > 0 {
			if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
				chunk = chunk[:i+1]
			}
		}
		if len(chunk) > room {
			chunk = chunk[:room]
		}
		w.buf.Write(chunk)
		p = p[len(chunk):]

		if w.maxLines > 0 && chunk[len(chunk)-1] == '\n' {
			w.lines++
			if w.lines >= w.maxLines {
				w.full = true
			}
		}
	}
	return n, nil
}

func (w *cappedWriter) String() string {
	return w.buf.String()
}

// truncate cuts s to max characters and appends TruncationMarker when
// anything was removed.
func truncate(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i] + TruncationMarker, true
		}
		count++
	}
	return s, false
}
