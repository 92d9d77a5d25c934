package domain

// CreateMessageRequest is the body of POST /messages.
type CreateMessageRequest struct {
	ReceiverID string  `json:"receiver_id"`
	Content    string  `json:"content"`
	ParentID   *string `json:"parent_id,omitempty"`
}

// EditMessageRequest is the body of PUT /messages/:id. Version, when set,
// must match the stored version or the edit is rejected as a conflict.
type EditMessageRequest struct {
	Content string `json:"content"`
	Version *int64 `json:"version,omitempty"`
}

// MarkReadRequest is the body of POST /messages/read.
type MarkReadRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// MarkReadResponse reports how many messages actually flipped to read.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}
