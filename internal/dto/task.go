package dto

import "encoding/json"

// CreateTaskRequest is the POST /tasks body. Text is a pointer so a missing
// field is distinguishable from an empty one.
type CreateTaskRequest struct {
	Text *string `json:"text"`
}

// UpdateTaskRequest is the PUT /tasks/:id body. Nil fields are left
// untouched.
type UpdateTaskRequest struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

// Envelope is the uniform response wrapper used by every task endpoint.
// Content always carries the JSON-encoded payload on success, so clients
// can JSON-parse it unconditionally; on error it is empty.
type Envelope struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Content string `json:"content"`
}

// Success wraps payload into a success envelope. A payload that cannot be
// marshalled is a programming error and surfaces as an error envelope.
func Success(payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Status: "success", Error: "", Content: string(b)}, nil
}

// Failure wraps an error message into an error envelope.
func Failure(msg string) Envelope {
	return Envelope{Status: "error", Error: msg, Content: ""}
}
