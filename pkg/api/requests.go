package api

// QueryRequest submits a standalone query.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// ChatCreate opens a new chat, optionally seeding the first user message.
type ChatCreate struct {
	Title          string `json:"title"`
	InitialMessage string `json:"initial_message"`
}

// ChatUpdate carries partial chat metadata updates. Pointer fields
// distinguish "absent" from "empty".
type ChatUpdate struct {
	Title *string `json:"title"`
}

// ChatQueryRequest submits a query in the context of an existing chat.
type ChatQueryRequest struct {
	Query string `json:"query" binding:"required"`
}
