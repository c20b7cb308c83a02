package push

import "time"

// Token is one registered device push token.
type Token struct {
	Token      string    `json:"token"`
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	Platform   string    `json:"platform"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RegisterTokenRequest is the registration payload from mobile devices.
type RegisterTokenRequest struct {
	Token      string `json:"token" validate:"required,min=1"`
	DeviceID   string `json:"deviceId,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

// SendRequest is a manual notification send. To is a single token, a list of
// tokens, or the sentinel "all".
type SendRequest struct {
	To    any    `json:"to"`
	Title string `json:"title" validate:"required,min=1"`
	Body  string `json:"body" validate:"required,min=1"`
}

// DeliveryError is one failed per-recipient delivery.
type DeliveryError struct {
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// SendResult summarizes a best-effort delivery attempt. Invalid recipient
// tokens are reported separately from delivery failures.
type SendResult struct {
	Success       bool            `json:"success"`
	Sent          int             `json:"sent"`
	Total         int             `json:"total"`
	Errors        []DeliveryError `json:"errors,omitempty"`
	InvalidTokens []string        `json:"invalidTokens,omitempty"`
}
