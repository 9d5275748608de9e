package models

// ChatRequest is the body of POST /chat/message.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatReply is returned when the upstream model answered.
type ChatReply struct {
	Reply string `json:"reply"`
}

// ChatError is the error body of the chat endpoints.
type ChatError struct {
	Error string `json:"error"`
}
