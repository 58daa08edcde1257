package gateway

const (
	// RoleUser marks a turn written by the person chatting.
	RoleUser = "user"
	// RoleModel marks a turn produced by the assistant.
	RoleModel = "model"
)

// Message is a single conversation turn.
type Message struct {
	ID   string `json:"id" mapstructure:"id"`
	Role string `json:"role" mapstructure:"role"`
	Text string `json:"text" mapstructure:"text"`
}

// RoleRequirement is one requested position and how many people are needed for it.
type RoleRequirement struct {
	Role  string `json:"role" mapstructure:"role"`
	Count int    `json:"count" mapstructure:"count"`
}

// ExtractedData is the hiring profile the backend derives from the conversation.
// Empty strings mean the value was not provided.
type ExtractedData struct {
	Industry string            `json:"industry,omitempty" mapstructure:"industry"`
	Location string            `json:"location,omitempty" mapstructure:"location"`
	Roles    []RoleRequirement `json:"roles" mapstructure:"roles"`
	Urgency  string            `json:"urgency,omitempty" mapstructure:"urgency"`
}

// Clone returns a deep copy. It is safe to call on a nil receiver.
func (d *ExtractedData) Clone() *ExtractedData {
	if d == nil {
		return nil
	}

	clone := *d
	if d.Roles != nil {
		clone.Roles = append([]RoleRequirement(nil), d.Roles...)
	}

	return &clone
}

// HasRoles reports whether at least one role was extracted.
func (d *ExtractedData) HasRoles() bool {
	return d != nil && len(d.Roles) > 0
}

// ChatRequest is the body of a chat submission.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// ChatResponse is the backend reply to a chat submission.
type ChatResponse struct {
	Response      string         `json:"response"`
	ExtractedData *ExtractedData `json:"extractedData"`
}
