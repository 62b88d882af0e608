package wire

import "encoding/json"

// Attachment is an optional file/image attached to viewer input.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// InputPayload carries user text from a viewer to the agent.
type InputPayload struct {
	SessionID   string       `json:"sessionId,omitempty"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ModelSetPayload asks the agent to switch model.
type ModelSetPayload struct {
	SessionID string `json:"sessionId,omitempty"`
	Provider  string `json:"provider"`
	ModelID   string `json:"modelId"`
}

// ExecPayload is a remote command request routed from a viewer to the agent.
type ExecPayload struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId,omitempty"`
	Command   string          `json:"command"`
	Args      json.RawMessage `json:"args,omitempty"`
}
