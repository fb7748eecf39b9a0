// Package renderer prints session events as plain text lines.
//
// Output is incremental: every event becomes one line, written as it
// arrives, with no screen clearing or cursor movement. This works the same
// for an interactive terminal, a pipe or a log file.
//
// Basic usage:
//
//	p := &renderer.Printer{W: os.Stdout, Engine: "katago", Height: 19, SkipI: true}
//	for ev := range events {
//	    p.Print(ev)
//	}
package renderer

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/a2y-d5l/gtpbridge/gtp"
	"github.com/a2y-d5l/gtpbridge/session"
)

const (
	defaultPrefix = "[%s]"
	defaultTopN   = 3
)

// Printer writes one line per session event.
//
// Output format (without timestamps):
//
//	[katago] = 19
//	[katago] analysis: D4 (3,15) 52.1% 1203v pv D4 Q16 Q3 | Q16 (15,3) 47.0% 880v pv Q16 D4
//	[katago] warning: board already finished
//	[katago] exited: ok
//
// Output format (with timestamps):
//
//	[2024-11-20T15:30:45Z] [katago] = 19
type Printer struct {
	// W receives the output.
	W io.Writer

	// Now returns the time used for timestamps. Defaults to time.Now.
	Now func() time.Time

	// Engine is the name shown in the prefix.
	Engine string

	// Prefix is a format string with exactly one "%s" for the engine name.
	// If empty, defaults to "[%s]".
	Prefix string

	// Height is the board height used to decode analysis moves into
	// positions. Zero prints moves without positions.
	Height int

	// TopN limits how many analysis candidates are printed.
	// Zero or negative uses the default of 3.
	TopN int

	// SkipI matches the board's column lettering.
	SkipI bool

	// Timestamps prefixes each line with an RFC3339 UTC timestamp.
	Timestamps bool
}

// Print renders ev. Unknown event types are ignored.
func (p *Printer) Print(ev session.Event) {
	switch e := ev.(type) {
	case session.LogEvent:
		p.println(strings.TrimRight(e.Line, "\r\n"))
	case session.WarningEvent:
		p.println("warning: " + e.Line)
	case session.AnalysisEvent:
		if len(e.Batch) == 0 {
			return
		}
		p.println("analysis: " + p.summarize(e.Batch))
	case session.ExitEvent:
		p.printlnAs(e.Engine, "exited: "+FormatExitError(e.Err))
	}
}

// summarize formats the best candidates of a batch by their order field.
func (p *Printer) summarize(batch []gtp.Analysis) string {
	topN := p.TopN
	if topN <= 0 {
		topN = defaultTopN
	}

	ranked := slices.Clone(batch)
	slices.SortStableFunc(ranked, func(a, b gtp.Analysis) int {
		switch {
		case a.Order < b.Order:
			return -1
		case a.Order > b.Order:
			return 1
		default:
			return 0
		}
	})

	parts := lo.Map(lo.Subset(ranked, 0, uint(topN)), func(a gtp.Analysis, _ int) string {
		return p.candidate(a)
	})
	return strings.Join(parts, " | ")
}

func (p *Printer) candidate(a gtp.Analysis) string {
	var b strings.Builder
	b.WriteString(a.Move)
	if p.Height > 0 {
		if pos, ok := gtp.FromMoveString(a.Move, p.Height, p.SkipI); ok {
			fmt.Fprintf(&b, " (%d,%d)", pos.Col, pos.Row)
		}
	}
	fmt.Fprintf(&b, " %.1f%% %dv", a.Winrate*100, a.Visits)
	if len(a.PV) > 0 {
		b.WriteString(" pv ")
		b.WriteString(strings.Join(a.PV, " "))
	}
	return b.String()
}

func (p *Printer) println(text string) {
	p.printlnAs(p.Engine, text)
}

func (p *Printer) printlnAs(name, text string) {
	logPrefix := p.Prefix
	if logPrefix == "" {
		logPrefix = defaultPrefix
	}
	if name == "" {
		name = "engine"
	}
	prefix := fmt.Sprintf(logPrefix, name)

	var output string
	if p.Timestamps {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		timestamp := now().UTC().Format(time.RFC3339)
		output = fmt.Sprintf("[%s] %s %s", timestamp, prefix, text)
	} else {
		output = fmt.Sprintf("%s %s", prefix, text)
	}
	fmt.Fprintln(p.W, output)
}
