package engine

// Output is the sink every engine relays its output lines into.
//
// An Output is created once by the consumer and passed to each Start call, so
// replacing the engine does not replace the channel the consumer is reading.
// Lines from stdout and stderr arrive interleaved in arrival order and carry
// no stream tag. The channel is never closed.
type Output struct {
	lines chan string
}

// NewOutput creates an Output whose channel holds up to buffer pending lines.
// Readers block on a full Output until the consumer catches up or the engine
// shuts down.
func NewOutput(buffer int) *Output {
	if buffer < 0 {
		buffer = 0
	}
	return &Output{lines: make(chan string, buffer)}
}

// Lines returns the receive side of the sink.
func (o *Output) Lines() <-chan string {
	return o.lines
}
