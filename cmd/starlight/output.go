package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/mmcdole/starlight/internal/tui/styles"
	"golang.org/x/term"
)

const maxLineWidth = 100

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// statusLine prints progress to w. On a terminal it redraws a single line
// with a bar; otherwise it prints one line per text change.
type statusLine struct {
	w     io.Writer
	live  bool
	width int

	mu   sync.Mutex
	last string
}

func newStatusLine(w io.Writer, plain bool) *statusLine {
	l := &statusLine{w: w, live: !plain && shouldColorize(w), width: maxLineWidth}
	if f, ok := w.(*os.File); ok && l.live {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			l.width = min(width, maxLineWidth)
		}
	}
	return l
}

func (l *statusLine) update(text string, percent float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.live {
		if text != l.last {
			fmt.Fprintln(l.w, text)
			l.last = text
		}
		return
	}

	pct := fmt.Sprintf(" %5.1f%%", percent)
	barWidth := max(l.width/3, 10)
	label := styles.Truncate(text, l.width-barWidth-len(pct)-1)
	fmt.Fprintf(l.w, "\r\033[K%s %s%s", label, styles.RenderProgressBar(percent, barWidth), pct)
	l.last = text
}

// clear removes the live line so regular output starts at column zero.
func (l *statusLine) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.live && l.last != "" {
		fmt.Fprint(l.w, "\r\033[K")
	}
	l.last = ""
}

func colorize(enabled bool, render func(...string) string, s string) string {
	if !enabled {
		return s
	}
	return render(s)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "  ")
}
