// Package card implements the agent directory: each agent publishes a
// capability descriptor (name, skills, endpoint) so a supervisor can discover
// what it can delegate to. The package also validates that incoming task
// payloads are structurally well-formed before any business logic runs.
package card

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/parcelops/resolve/runtime/task"
)

type (
	// Capabilities captures protocol-level capability flags advertised by an
	// agent.
	Capabilities struct {
		// Streaming reports whether the agent can stream task updates.
		Streaming bool `json:"streaming"`
		// PushNotifications reports whether the agent can push task updates.
		PushNotifications bool `json:"pushNotifications"`
	}

	// Skill describes one capability of an agent. Skills are purely
	// descriptive: used for discovery and documentation, not enforced at
	// runtime.
	Skill struct {
		// ID is the unique identifier for the skill within the agent.
		ID string `json:"id"`
		// Name is the human-readable skill name.
		Name string `json:"name"`
		// Description is an optional human-readable description.
		Description string `json:"description,omitempty"`
		// Examples are optional sample invocations.
		Examples []string `json:"examples,omitempty"`
		// Tags are optional labels describing the skill.
		Tags []string `json:"tags,omitempty"`
	}

	// AgentCard is an agent's capability descriptor. Cards are immutable once
	// published; republishing replaces the previous card wholesale.
	AgentCard struct {
		// Name is the agent identifier used for delegation.
		Name string `json:"name"`
		// Description is a human-readable description of the agent.
		Description string `json:"description,omitempty"`
		// Endpoint is the address where the agent accepts task requests.
		Endpoint string `json:"endpoint"`
		// Skills enumerates the skills exposed by the agent.
		Skills []Skill `json:"skills"`
		// Capabilities captures optional capability flags.
		Capabilities Capabilities `json:"capabilities"`
	}

	// Directory holds published agent cards. It is safe for concurrent use.
	Directory struct {
		mu    sync.RWMutex
		cards map[string]AgentCard
	}

	// MalformedRequestError reports a task payload that is not a structurally
	// valid task-message envelope.
	MalformedRequestError struct {
		// Reason is the human-readable validation failure.
		Reason string
	}
)

// ErrMalformedRequest is the sentinel matched by errors.Is for payloads that
// fail envelope validation.
var ErrMalformedRequest = errors.New("malformed request")

// Error implements the error interface.
func (e *MalformedRequestError) Error() string {
	return fmt.Sprintf("malformed request: %s", e.Reason)
}

// Is matches ErrMalformedRequest so callers can use errors.Is.
func (e *MalformedRequestError) Is(target error) bool {
	return target == ErrMalformedRequest
}

// NewDirectory creates an empty agent directory.
func NewDirectory() *Directory {
	return &Directory{cards: make(map[string]AgentCard)}
}

// Publish registers an agent card. Publication is idempotent: agents may call
// it repeatedly and the last write wins, so Describe never accumulates
// duplicates.
func (d *Directory) Publish(card AgentCard) error {
	if card.Name == "" {
		return errors.New("agent card name is required")
	}
	if card.Endpoint == "" {
		return errors.New("agent card endpoint is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cards[card.Name] = card
	return nil
}

// Describe returns the published card for the named agent.
func (d *Directory) Describe(name string) (AgentCard, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	card, ok := d.cards[name]
	return card, ok
}

// List returns all published cards sorted by agent name.
func (d *Directory) List() []AgentCard {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cards := make([]AgentCard, 0, len(d.cards))
	for _, c := range d.cards {
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Name < cards[j].Name })
	return cards
}

// ValidateTaskMessage rejects payloads that are not structurally valid task
// messages: missing role, missing or empty parts, or parts of unknown kind.
// This is pure input validation; no business logic.
func ValidateTaskMessage(msg *task.Message) error {
	if msg == nil {
		return &MalformedRequestError{Reason: "message is required"}
	}
	if msg.Role != "user" && msg.Role != "assistant" {
		return &MalformedRequestError{Reason: fmt.Sprintf("unknown role %q", msg.Role)}
	}
	if len(msg.Parts) == 0 {
		return &MalformedRequestError{Reason: "message parts must be non-empty"}
	}
	for i, p := range msg.Parts {
		switch p.Kind {
		case task.PartKindText:
			if p.Text == "" {
				return &MalformedRequestError{Reason: fmt.Sprintf("part %d: text is required", i)}
			}
		case task.PartKindToolResult:
			if p.ToolUseID == "" {
				return &MalformedRequestError{Reason: fmt.Sprintf("part %d: toolUseId is required", i)}
			}
		default:
			return &MalformedRequestError{Reason: fmt.Sprintf("part %d: unknown kind %q", i, p.Kind)}
		}
	}
	return nil
}
