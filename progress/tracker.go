// Package progress renders a single-line, in-place progress display for a
// batch run, falling back to plain lines when the output is not a terminal.
package progress

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Skryldev/adimage-uploader/core"
)

// Tracker follows a fixed number of items.  It is safe for concurrent use;
// once Success, Error, Info or Stop has been called further updates are
// ignored.
type Tracker struct {
	mu      sync.Mutex
	out     io.Writer
	tty     bool
	total   int
	current int
	start   time.Time
	last    string
	running bool
	now     func() time.Time

	ok   lipgloss.Style
	fail lipgloss.Style
	note lipgloss.Style
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithWriter sends output to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(t *Tracker) { t.out = w }
}

// WithClock overrides the time source used for the ETA.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New starts a tracker for total items and prints the initial line.
func New(total int, opts ...Option) *Tracker {
	t := &Tracker{out: os.Stdout, total: total, running: true, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	t.tty = isTerminal(t.out)

	r := lipgloss.NewRenderer(t.out)
	t.ok = r.NewStyle().Foreground(lipgloss.Color("2"))
	t.fail = r.NewStyle().Foreground(lipgloss.Color("1"))
	t.note = r.NewStyle().Foreground(lipgloss.Color("4"))

	t.start = t.now()
	t.Update("Initializing...", 0)
	return t
}

// Update advances the counter by increment and redraws the line.
func (t *Tracker) Update(message string, increment int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.current += increment
	line := t.line(message)

	if t.tty {
		fmt.Fprint(t.out, "\r"+strings.Repeat(" ", len(t.last)))
		fmt.Fprint(t.out, "\r"+line)
	} else {
		fmt.Fprintln(t.out, line)
	}
	t.last = line
}

// SetTotal changes the number of items followed, e.g. once an archive has
// been opened.
func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
}

// Current returns the number of completed items.
func (t *Tracker) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *Tracker) Success(message string) { t.finish(t.ok, "✓ ", message) }
func (t *Tracker) Error(message string)   { t.finish(t.fail, "✗ ", message) }
func (t *Tracker) Info(message string)    { t.finish(t.note, "ℹ ", message) }

// Stop ends the display without a status line.  It does nothing once the
// display has already ended.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	fmt.Fprint(t.out, "\n")
}

func (t *Tracker) finish(style lipgloss.Style, mark, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	fmt.Fprint(t.out, "\n"+style.Render(mark+message)+"\n")
}

func (t *Tracker) line(message string) string {
	pct := 0
	if t.total > 0 {
		pct = int(math.Round(float64(t.current) / float64(t.total) * 100))
	}
	eta := "?"
	if t.current > 0 {
		elapsed := t.now().Sub(t.start).Seconds()
		rate := float64(t.current) / elapsed
		eta = formatTime(float64(t.total-t.current) / rate)
	}
	return fmt.Sprintf("%s (%d%%) - %d/%d images - %s remaining", message, pct, t.current, t.total, eta)
}

// formatTime renders seconds as "42s" or "3m 7s".
func formatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "?"
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", int(math.Round(seconds)))
	}
	minutes := int(seconds / 60)
	rest := int(math.Round(math.Mod(seconds, 60)))
	return fmt.Sprintf("%dm %ds", minutes, rest)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

var (
	_ core.ProgressObserver = (*Tracker)(nil)
	_ core.ProgressSizer    = (*Tracker)(nil)
)
