package models

import "time"

// Design is a saved design owned by a signed-in user.
type Design struct {
	ID            string            `json:"id"`
	UserID        string            `json:"userId"`
	Name          string            `json:"name"`
	TShirtColor   string            `json:"tshirtColor"`
	ImageAssetID  string            `json:"imageAssetId,omitempty"`
	ImageURL      string            `json:"imageUrl,omitempty"`
	MockupAssetID string            `json:"mockupAssetId,omitempty"`
	Prompt        string            `json:"prompt,omitempty"`
	Answers       map[string]string `json:"answers,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
