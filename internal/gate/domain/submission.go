package domain

// Field is one submitted form field.
type Field struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Submission is what a host hook point hands to an integration adapter.
type Submission struct {
	FormID   string   `json:"form_id"`
	Fields   []Field  `json:"fields"`
	Roles    []string `json:"roles"`
	ClientIP string   `json:"client_ip"`
}

// FieldError is a rejection surfaced against a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Outcome is the integration's answer to the host.
type Outcome struct {
	Integration string       `json:"integration"`
	Allowed     bool         `json:"allowed"`
	Halted      bool         `json:"halted"`
	Skipped     string       `json:"skipped,omitempty"` // "disabled" or "bypass"
	Errors      []FieldError `json:"errors,omitempty"`
	Notices     []string     `json:"notices,omitempty"`
}

// BlockedEvent is handed to the notifier after a rejection.
type BlockedEvent struct {
	Site   Site
	Entry  LogEntry
	Domain string
}
