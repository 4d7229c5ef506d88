package models

import "time"

// MediaDetails is a provider media reference resolved to its download URL.
// The URL is authenticated and expires; it is never cached across calls.
type MediaDetails struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
}

// StoredMedia describes a file persisted by the permanent store
type StoredMedia struct {
	Filename     string    `json:"filename"`
	RelativePath string    `json:"relativePath"`
	MimeType     string    `json:"mimeType"`
	ByteSize     int64     `json:"byteSize"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PermanenceResult is returned by the permanence pipeline. URL is stable when
// IsPermanent is true, otherwise it is the original expiring provider URL and
// IsFallback is set.
type PermanenceResult struct {
	URL         string `json:"url"`
	MimeType    string `json:"mimeType"`
	IsPermanent bool   `json:"isPermanent"`
	IsFallback  bool   `json:"isFallback"`
	Filename    string `json:"filename,omitempty"`
	ByteSize    int64  `json:"byteSize,omitempty"`
}
