// Package progress implements the CLI progress UX: a terminal reporter
// for step-started/step-done/step-failed events, built on bubbles'
// spinner frame tables and lipgloss styling rather than hand-rolled
// ANSI escapes.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	stepStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	fadedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// Reporter implements executor.Observer, printing one line per step start
// and one line per step finish. On an interactive terminal the start line
// carries a live spinner animation (bubbles.spinner.Dot's frame set,
// lipgloss-styled) until the matching finish arrives; redirected output
// (CI logs, pipes) falls back to plain lines with no animation, gated
// on term.IsTerminal against the output file descriptor.
type Reporter struct {
	out io.Writer
	interactive bool
	frames []string
	fps time.Duration

	mu sync.Mutex
	active bool
	stop chan struct{}
	done sync.WaitGroup
}

// NewReporter returns a Reporter writing to out. Pass os.Stdout for the
// normal CLI path.
func NewReporter(out io.Writer) *Reporter {
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &Reporter{
		out: out,
		interactive: interactive,
		frames: spinner.Dot.Frames,
		fps: spinner.Dot.FPS,
	}
}

// StepStarted implements executor.Observer.
func (r *Reporter) StepStarted(index int, stepType string, config map[string]interface{}) {
	label := stepStyle.Render(fmt.Sprintf("[%d] %s", index, stepType))

	r.mu.Lock()
	if !r.interactive {
		r.mu.Unlock()
		fmt.Fprintf(r.out, "%s started\n", label)
		return
	}
	r.active = true
	r.stop = make(chan struct{})
	r.mu.Unlock()

	r.done.Add(1)
	go r.animate(label)
}

func (r *Reporter) animate(label string) {
	defer r.done.Done()
	fmt.Fprint(r.out, "\033[?25l")
	defer fmt.Fprint(r.out, "\033[?25h")

	fps := r.fps
	if fps <= 0 {
		fps = 10 * time.Millisecond
	}
	ticker := time.NewTicker(fps)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-r.stop:
			fmt.Fprint(r.out, "\r\033[K")
			return
		case <-ticker.C:
			if len(r.frames) == 0 {
				continue
			}
			fmt.Fprintf(r.out, "\r\033[K%s %s", r.frames[frame%len(r.frames)], label)
			frame++
		}
	}
}

// StepFinished implements executor.Observer.
func (r *Reporter) StepFinished(index int, stepType string, err error) {
	r.mu.Lock()
	wasActive := r.active
	r.active = false
	r.mu.Unlock()

	if wasActive {
		close(r.stop)
		r.done.Wait()
	}

	label := stepStyle.Render(fmt.Sprintf("[%d] %s", index, stepType))
	if err != nil {
		fmt.Fprintf(r.out, "%s %s: %v\n", label, failStyle.Render("FAILED"), err)
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", label, okStyle.Render("done"))
}

// Message prints a one-off informational line in a faded secondary tone.
func (r *Reporter) Message(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, fadedStyle.Render(fmt.Sprintf(format, args...)))
}
