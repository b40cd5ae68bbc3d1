// events.go defines the JSON frames of the streaming protocol.
//
// Client -> server, one object per turn:
//
//	{"message": "...", "session_id": "..."|null}
//
// Server -> client, zero or more objects per turn, tagged by "type":
//
//	session_created {session_id}   new session assigned for this turn
//	token           {content}      plain-text fragment
//	tool_call       {id, name, arguments}
//	tool_result     {name, result}
//	done            {session_id}   turn ended normally
//	error           {message}      turn ended abnormally or was rejected
package relay

// ChatRequest is one client turn.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// Event is one server frame. Fields are omitted when empty, so each
// variant serializes with exactly its own payload.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
	Message   string `json:"message,omitempty"`
}

func sessionCreatedEvent(sessionID string) Event {
	return Event{Type: "session_created", SessionID: sessionID}
}

func tokenEvent(content string) Event {
	return Event{Type: "token", Content: content}
}

func toolCallEvent(id, name, arguments string) Event {
	return Event{Type: "tool_call", ID: id, Name: name, Arguments: arguments}
}

func toolResultEvent(name, result string) Event {
	return Event{Type: "tool_result", Name: name, Result: result}
}

func doneEvent(sessionID string) Event {
	return Event{Type: "done", SessionID: sessionID}
}

func errorEvent(message string) Event {
	return Event{Type: "error", Message: message}
}
