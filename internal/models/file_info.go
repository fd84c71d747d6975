package models

import "time"

// Asset kinds.
const (
	AssetUpload = "upload"
	AssetExport = "export"
	AssetMockup = "mockup"
)

// FileInfo represents metadata about a stored image asset.
type FileInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	Kind        string    `json:"kind"` // "upload", "export", "mockup"
	UploadedAt  time.Time `json:"uploadedAt"`
}
