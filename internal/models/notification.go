package models

import "time"

type Notification struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Meta      map[string]any `json:"meta"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}
