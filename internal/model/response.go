package model

import "time"

// Response is one accepted submission of a form.
// Data is stored exactly as validated; file fields hold storage references.
type Response struct {
	ID          string         `json:"id"`
	FormID      string         `json:"form"`
	FormName    string         `json:"form_name,omitempty"`
	UserID      string         `json:"-"`
	UserEmail   string         `json:"user"`
	Data        map[string]any `json:"response_data"`
	SubmittedAt time.Time      `json:"submitted_at"`
}
