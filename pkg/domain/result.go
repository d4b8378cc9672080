package domain

// Result describes what one traversal step did.
type Result struct {
	UserID string `json:"user_id"`
	// NodeID is the node the user is positioned at after the step.
	NodeID string `json:"node_id"`
	Status Status `json:"status"`
	// Sent holds the rendered texts in emission order, including those whose
	// delivery failed.
	Sent        []string `json:"sent,omitempty"`
	Transitions int      `json:"transitions"`
}
