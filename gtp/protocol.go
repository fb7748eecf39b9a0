// Package gtp holds the text side of the engine protocol: the commands the
// bridge sends, the classification of lines the engine prints, the decoder
// for kata-analyze output and the vertex codec shared with the board.
//
// Nothing in this package touches a process or a pipe. Everything here is a
// pure function over strings, so it can run on whichever goroutine consumes
// engine output.
package gtp

import (
	"strconv"
	"strings"
)

const (
	// AnalyzeCommand asks the engine for continuous top-move evaluation
	// every 15 centiseconds, with visit counts attached to each
	// principal variation.
	AnalyzeCommand = "kata-analyze 15 pvVisits true"

	// StopCommand interrupts a running analysis. Any command stops
	// kata-analyze; this one has no other effect.
	StopCommand = "stop"

	// FinishedWarning is the diagnostic the engine prints when asked to
	// analyze a board that has no moves left.
	FinishedWarning = "board already finished"
)

// LineKind classifies one line of engine output.
type LineKind int

const (
	// LineLog is free-form diagnostic text.
	LineLog LineKind = iota
	// LineAnalysis starts with the "info" token and decodes with Decode.
	LineAnalysis
	// LineFinished is the engine's board-already-finished warning.
	LineFinished
	// LineResponse is a successful GTP response ("=" prefix).
	LineResponse
	// LineFailure is a failed GTP response ("?" prefix).
	LineFailure
)

func (k LineKind) String() string {
	switch k {
	case LineLog:
		return "log"
	case LineAnalysis:
		return "analysis"
	case LineFinished:
		return "finished"
	case LineResponse:
		return "response"
	case LineFailure:
		return "failure"
	default:
		return "LineKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Classify decides how a consumer should route one line of engine output.
func Classify(line string) LineKind {
	switch {
	case strings.HasPrefix(line, FinishedWarning):
		return LineFinished
	case strings.HasPrefix(line, "="):
		return LineResponse
	case strings.HasPrefix(line, "?"):
		return LineFailure
	}
	if fields := strings.Fields(line); len(fields) > 0 && fields[0] == recordSeparator {
		return LineAnalysis
	}
	return LineLog
}

// AnalyzeEvery builds a kata-analyze command with a custom reporting
// interval in centiseconds. Non-positive intervals fall back to
// AnalyzeCommand.
func AnalyzeEvery(centiseconds int) string {
	if centiseconds <= 0 {
		return AnalyzeCommand
	}
	return "kata-analyze " + strconv.Itoa(centiseconds) + " pvVisits true"
}
