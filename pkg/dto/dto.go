// Package dto provides data transfer objects for COS operations
package dto

import "time"

// FileEntry is the structure to store the metadata of one listed object.
// Name is the key relative to the folder prefix.
type FileEntry struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
}

// FolderListing is the per-folder part of a list-all result. Exactly one
// of Files or Error is set: a folder whose listing failed reports the
// error inline without suppressing the other folders.
type FolderListing struct {
	Files []FileEntry `json:"files,omitempty"`
	Error string      `json:"error,omitempty"`
}

// UploadResult reports a completed upload.
type UploadResult struct {
	CosKey         string  `json:"cos_key"`
	SizeMB         float64 `json:"size_mb,omitempty"`
	OriginalSizeMB float64 `json:"original_size_mb,omitempty"`
	Compressed     bool    `json:"compressed"`
	Message        string  `json:"message"`
}

// DownloadResult reports a completed download.
type DownloadResult struct {
	CosKey    string  `json:"cos_key"`
	LocalPath string  `json:"local_path"`
	SizeMB    float64 `json:"size_mb"`
	Message   string  `json:"message"`
}

// CopyResult reports a completed server-side copy.
type CopyResult struct {
	SourceCosKey string `json:"source_cos_key"`
	TargetCosKey string `json:"target_cos_key"`
	Message      string `json:"message"`
}

// MoveResult reports a completed move. Warning carries a failed source
// deletion after a successful copy; the move still counts as successful.
type MoveResult struct {
	SourceCosKey string `json:"source_cos_key"`
	TargetCosKey string `json:"target_cos_key"`
	Warning      string `json:"warning,omitempty"`
	Message      string `json:"message"`
}

// DeleteResult reports a completed deletion.
type DeleteResult struct {
	CosKey  string `json:"cos_key"`
	Message string `json:"message"`
}

// ListResult reports the listing of a single folder.
type ListResult struct {
	Files   []FileEntry `json:"files"`
	Message string      `json:"message"`
}

// ListAllResult reports the listing of every configured folder.
type ListAllResult struct {
	Folders map[string]FolderListing `json:"folders"`
	Message string                   `json:"message"`
}

// PermissionsResult describes the configured policy for get_permissions.
type PermissionsResult struct {
	BucketName          string `json:"bucket_name"`
	Region              string `json:"region"`
	ParentDirectory     string `json:"parent_directory"`
	Permissions         string `json:"permissions"`
	CompressThresholdMB int    `json:"compress_threshold_mb"`
}

// VirusRecord is one detection entry of a finished scan job.
type VirusRecord struct {
	VirusName string `json:"virus_name,omitempty"`
	FileName  string `json:"file_name,omitempty"`
}

// ScanJob mirrors the remote virus-scan job state. This process keeps no
// local job state; every field comes verbatim from the remote service.
type ScanJob struct {
	JobID        string        `json:"job_id"`
	State        string        `json:"state"`
	CreationTime string        `json:"creation_time,omitempty"`
	Object       string        `json:"object,omitempty"`
	URL          string        `json:"url,omitempty"`
	Suggestion   string        `json:"suggestion,omitempty"`
	DetectDetail []VirusRecord `json:"detect_detail,omitempty"`
	Code         string        `json:"code,omitempty"`
	Message      string        `json:"message,omitempty"`
}

// Envelope is the single JSON object written to stdout per invocation.
type Envelope struct {
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
