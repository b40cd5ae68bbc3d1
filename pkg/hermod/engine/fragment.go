// Package engine adapts an OpenAI-compatible reasoning endpoint into a
// stream of typed fragments, reassembles fragmented tool calls, and
// executes tools between the model's completion signal and the next
// fragment.
package engine

// FragmentKind tags the variants of a streamed engine fragment.
type FragmentKind int

const (
	// FragmentText carries a plain-text delta to append to the reply.
	FragmentText FragmentKind = iota

	// FragmentToolCallDelta carries an incremental piece of a tool call:
	// any of CallID, NameDelta, ArgsDelta may be empty.
	FragmentToolCallDelta

	// FragmentToolCallDone signals that the in-flight tool call is
	// complete and about to be executed.
	FragmentToolCallDone

	// FragmentToolResult carries the output of an executed tool.
	FragmentToolResult

	// FragmentError terminates the stream abnormally. The adapter emits
	// at most one, as the final fragment.
	FragmentError
)

// Fragment is one incremental unit of a streaming engine response.
// Only the fields of the tagged variant are meaningful.
type Fragment struct {
	Kind FragmentKind

	// FragmentText
	Text string

	// FragmentToolCallDelta
	CallID    string
	NameDelta string
	ArgsDelta string

	// FragmentToolResult
	ToolName   string
	ToolResult string

	// FragmentError
	Err string
}

func textFragment(text string) Fragment {
	return Fragment{Kind: FragmentText, Text: text}
}

func toolResultFragment(name, result string) Fragment {
	return Fragment{Kind: FragmentToolResult, ToolName: name, ToolResult: result}
}

func errorFragment(msg string) Fragment {
	return Fragment{Kind: FragmentError, Err: msg}
}
