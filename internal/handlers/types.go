package handlers

import "time"

// LoginRequest is the admin authentication request
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued session token
type LoginResponse struct {
	Token string `json:"token"`
}

// KeywordRequest is the request structure for adding a keyword
type KeywordRequest struct {
	Keyword string `json:"keyword" binding:"required"`
}

// KeywordResponse is the response structure for keywords
type KeywordResponse struct {
	ID        uint      `json:"id"`
	Keyword   string    `json:"keyword"`
	CreatedAt time.Time `json:"created_at"`
}

// KeywordListResponse is a page of keywords plus the total count
type KeywordListResponse struct {
	Items []KeywordResponse `json:"items"`
	Total int64             `json:"total"`
}

// StatusResponse is the control surface status report
type StatusResponse struct {
	Connected        bool       `json:"connected"`
	Enabled          bool       `json:"enabled"`
	LastError        string     `json:"last_error,omitempty"`
	LastEventTime    *time.Time `json:"last_event_time,omitempty"`
	LastEventMessage string     `json:"last_event_message,omitempty"`
}

// EventLogResponse is one audit record
type EventLogResponse struct {
	ID        uint      `json:"id"`
	Level     string    `json:"level"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Details   map[string]string `json:"details,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
