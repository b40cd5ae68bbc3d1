// accumulator.go folds a fragment sequence into the final assistant text
// and the set of completed tool calls. The fold is pure state: no I/O, no
// locks; each consumer of a stream owns its own Accumulator.
package engine

import (
	"fmt"
	"strings"

	"github.com/jholhewres/hermod/pkg/hermod/store"
)

// Accumulator reassembles a possibly-interleaved fragment sequence.
// A tool call's id, name, and arguments may arrive split across many
// deltas, interleaved with text; at most one call is in flight at a time
// per completion unit, so continuation deltas fold into the open call even
// when their id differs.
type Accumulator struct {
	text    strings.Builder
	current *store.ToolCall
	calls   []store.ToolCall
	synth   int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Fold consumes one fragment. For a FragmentToolCallDone it flushes the
// open call and returns it; for every other fragment it returns nil.
// Fragments that carry no accumulable content are no-ops.
func (a *Accumulator) Fold(f Fragment) *store.ToolCall {
	switch f.Kind {
	case FragmentText:
		a.text.WriteString(f.Text)

	case FragmentToolCallDelta:
		if a.current == nil {
			id := f.CallID
			if id == "" {
				a.synth++
				id = fmt.Sprintf("call_%d", a.synth)
			}
			a.current = &store.ToolCall{ID: id}
		}
		a.current.Name += f.NameDelta
		a.current.Arguments += f.ArgsDelta

	case FragmentToolCallDone:
		return a.flush()
	}

	return nil
}

// Finish ends the stream: any still-open call is flushed (a protocol
// anomaly the caller should log, but the call is kept, not discarded).
// Returns the accumulated text, the completed calls in the order they were
// opened, and whether a dangling call was flushed.
func (a *Accumulator) Finish() (text string, calls []store.ToolCall, dangling bool) {
	if a.current != nil {
		a.flush()
		dangling = true
	}
	return a.text.String(), a.calls, dangling
}

// Text returns the text accumulated so far.
func (a *Accumulator) Text() string {
	return a.text.String()
}

func (a *Accumulator) flush() *store.ToolCall {
	if a.current == nil {
		return nil
	}
	call := *a.current
	a.calls = append(a.calls, call)
	a.current = nil
	return &call
}
