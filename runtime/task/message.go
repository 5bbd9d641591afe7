package task

// Part kinds for message content.
const (
	PartKindText       = "text"
	PartKindToolResult = "tool_result"
)

type (
	// Message represents one turn in a task conversation. A message always
	// carries at least one part.
	Message struct {
		// Role is the message role: "user" or "assistant".
		Role string `json:"role"`
		// Parts are the ordered content parts that make up the message.
		Parts []Part `json:"parts"`
	}

	// Part is one content element of a message: either plain text or the
	// result of a tool invocation.
	Part struct {
		// Kind identifies the part: "text" or "tool_result".
		Kind string `json:"kind"`
		// Text is the textual content when Kind == "text".
		Text string `json:"text,omitempty"`
		// ToolUseID correlates a tool result with the invocation that
		// produced it. Set when Kind == "tool_result".
		ToolUseID string `json:"toolUseId,omitempty"`
		// Content carries the tool result payload when Kind == "tool_result".
		Content any `json:"content,omitempty"`
	}
)

// TextMessage builds a single-part text message.
func TextMessage(role, text string) Message {
	return Message{
		Role:  role,
		Parts: []Part{{Kind: PartKindText, Text: text}},
	}
}

// ToolResultMessage builds a single-part tool result message authored by the
// user role, mirroring how providers expect tool results to be returned.
func ToolResultMessage(toolUseID string, content any) Message {
	return Message{
		Role:  "user",
		Parts: []Part{{Kind: PartKindToolResult, ToolUseID: toolUseID, Content: content}},
	}
}

// Text returns the concatenated text parts of the message.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Kind == PartKindText {
			out += p.Text
		}
	}
	return out
}
