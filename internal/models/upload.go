package models

// MediaCategory selects the rule set applied to an upload.
type MediaCategory string

const (
	MediaCategoryImage MediaCategory = "image"
	MediaCategoryAudio MediaCategory = "audio"
	MediaCategoryVideo MediaCategory = "video"
)

// UploadCandidate is the immutable input to the upload validation pipeline.
type UploadCandidate struct {
	Bytes            []byte
	DeclaredMimeType string
	Filename         string
}

// Size returns the byte length of the candidate.
func (c UploadCandidate) Size() int64 {
	return int64(len(c.Bytes))
}

// StoredObject describes processed bytes handed to object storage.
type StoredObject struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// UploadResult is returned to the caller after a successful upload.
type UploadResult struct {
	Category         MediaCategory `json:"category"`
	Object           StoredObject  `json:"object"`
	Thumbnail        *StoredObject `json:"thumbnail,omitempty"`
	EstimatedSeconds float64       `json:"estimated_duration_seconds,omitempty"`
}
