package api

import (
	"github.com/ajaxzhan/fileserver/pkg/types"
)

// PutFileRequest stores Data at Path. Data travels base64-encoded.
type PutFileRequest struct {
	Path types.FilePath `json:"path"`
	Data []byte         `json:"data"`
}

// GetFileRequest fetches the file at Path.
type GetFileRequest struct {
	Path types.FilePath `json:"path"`
}

// GetFileResponse carries the whole file.
type GetFileResponse struct {
	Data []byte `json:"data"`
}

// DeleteFileRequest removes the file at Path.
type DeleteFileRequest struct {
	Path types.FilePath `json:"path"`
}

// GetPropertiesRequest describes the file at Path.
type GetPropertiesRequest struct {
	Path          types.FilePath `json:"path"`
	ClassifyVideo bool           `json:"classify_video,omitempty"`
}

// CreateSnapshotRequest asks for a snapshot of Path.
type CreateSnapshotRequest struct {
	Path types.FilePath `json:"path"`
}

// CreateSnapshotResponse names the snapshot that was created.
type CreateSnapshotResponse struct {
	Path types.FilePath `json:"path"`
}
