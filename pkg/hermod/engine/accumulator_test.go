package engine

import (
	"testing"
)

func TestAccumulatorTextOnly(t *testing.T) {
	acc := NewAccumulator()
	for _, s := range []string{"Hello", ", ", "world"} {
		if got := acc.Fold(textFragment(s)); got != nil {
			t.Fatalf("Fold returned a call for a text fragment: %+v", got)
		}
	}

	text, calls, dangling := acc.Finish()
	if text != "Hello, world" {
		t.Errorf("text = %q, want %q", text, "Hello, world")
	}
	if len(calls) != 0 {
		t.Errorf("calls = %d, want 0", len(calls))
	}
	if dangling {
		t.Error("dangling = true for a clean text stream")
	}
}

func TestAccumulatorFragmentedToolCall(t *testing.T) {
	acc := NewAccumulator()

	// The id and name arrive on the first delta, arguments trickle in
	// across later deltas that carry no id at all.
	deltas := []Fragment{
		{Kind: FragmentToolCallDelta, CallID: "call_abc", NameDelta: "get_", ArgsDelta: ""},
		{Kind: FragmentToolCallDelta, NameDelta: "time", ArgsDelta: `{"time`},
		{Kind: FragmentToolCallDelta, ArgsDelta: `zone": "UTC"}`},
	}
	for _, f := range deltas {
		if got := acc.Fold(f); got != nil {
			t.Fatalf("Fold returned a call before the done fragment: %+v", got)
		}
	}

	call := acc.Fold(Fragment{Kind: FragmentToolCallDone})
	if call == nil {
		t.Fatal("Fold(done) returned nil, want completed call")
	}
	if call.ID != "call_abc" {
		t.Errorf("ID = %q, want call_abc", call.ID)
	}
	if call.Name != "get_time" {
		t.Errorf("Name = %q, want get_time", call.Name)
	}
	if call.Arguments != `{"timezone": "UTC"}` {
		t.Errorf("Arguments = %q", call.Arguments)
	}

	_, calls, dangling := acc.Finish()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if dangling {
		t.Error("dangling = true after an explicit done")
	}
}

func TestAccumulatorSyntheticID(t *testing.T) {
	acc := NewAccumulator()
	acc.Fold(Fragment{Kind: FragmentToolCallDelta, NameDelta: "search"})
	call := acc.Fold(Fragment{Kind: FragmentToolCallDone})
	if call == nil {
		t.Fatal("no completed call")
	}
	if call.ID != "call_1" {
		t.Errorf("ID = %q, want synthetic call_1", call.ID)
	}

	// A second id-less call gets the next synthetic id.
	acc.Fold(Fragment{Kind: FragmentToolCallDelta, NameDelta: "fetch"})
	call = acc.Fold(Fragment{Kind: FragmentToolCallDone})
	if call == nil || call.ID != "call_2" {
		t.Errorf("second call = %+v, want ID call_2", call)
	}
}

func TestAccumulatorContinuationIgnoresNewID(t *testing.T) {
	acc := NewAccumulator()
	acc.Fold(Fragment{Kind: FragmentToolCallDelta, CallID: "call_a", NameDelta: "x"})
	// Some backends repeat or change the id mid-call; the open call wins.
	acc.Fold(Fragment{Kind: FragmentToolCallDelta, CallID: "call_b", ArgsDelta: "{}"})
	call := acc.Fold(Fragment{Kind: FragmentToolCallDone})
	if call == nil {
		t.Fatal("no completed call")
	}
	if call.ID != "call_a" {
		t.Errorf("ID = %q, want call_a", call.ID)
	}
	if call.Arguments != "{}" {
		t.Errorf("Arguments = %q, want {}", call.Arguments)
	}
}

func TestAccumulatorDanglingCall(t *testing.T) {
	acc := NewAccumulator()
	acc.Fold(textFragment("partial"))
	acc.Fold(Fragment{Kind: FragmentToolCallDelta, CallID: "call_x", NameDelta: "f", ArgsDelta: `{"a":1}`})

	text, calls, dangling := acc.Finish()
	if !dangling {
		t.Fatal("dangling = false, want true for an unterminated call")
	}
	if text != "partial" {
		t.Errorf("text = %q", text)
	}
	if len(calls) != 1 || calls[0].ID != "call_x" {
		t.Fatalf("calls = %+v, want the flushed open call", calls)
	}
}

func TestAccumulatorNoOpFragments(t *testing.T) {
	acc := NewAccumulator()
	// Results and errors carry nothing to accumulate.
	acc.Fold(toolResultFragment("get_time", "12:00"))
	acc.Fold(errorFragment("boom"))
	if got := acc.Fold(Fragment{Kind: FragmentToolCallDone}); got != nil {
		t.Errorf("done with no open call returned %+v, want nil", got)
	}

	text, calls, dangling := acc.Finish()
	if text != "" || len(calls) != 0 || dangling {
		t.Errorf("Finish() = (%q, %v, %v), want empty", text, calls, dangling)
	}
}

func TestAccumulatorInterleavedTextAndCalls(t *testing.T) {
	acc := NewAccumulator()
	acc.Fold(textFragment("Let me check. "))
	acc.Fold(Fragment{Kind: FragmentToolCallDelta, CallID: "call_1", NameDelta: "get_time", ArgsDelta: "{}"})
	acc.Fold(Fragment{Kind: FragmentToolCallDone})
	acc.Fold(textFragment("It is noon."))

	text, calls, dangling := acc.Finish()
	if text != "Let me check. It is noon." {
		t.Errorf("text = %q", text)
	}
	if len(calls) != 1 || calls[0].Name != "get_time" {
		t.Errorf("calls = %+v", calls)
	}
	if dangling {
		t.Error("dangling = true")
	}
}
