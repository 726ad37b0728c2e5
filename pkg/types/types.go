// Package types defines the core domain types for the file service.
package types

import (
	"context"
	"path/filepath"
	"strings"
)

// FilePath is a client-supplied location relative to the server's data root.
// It is untrusted until resolved.
type FilePath struct {
	Directory string `json:"directory"`
	Filename  string `json:"filename"`
}

// Relative joins the directory and file name with a single separator.
// An empty directory yields "/<filename>".
func (p FilePath) Relative() string {
	return p.Directory + "/" + p.Filename
}

func (p FilePath) String() string {
	return p.Relative()
}

// VideoSeekTime is a position range inside a video. -1 means unknown.
type VideoSeekTime struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// UnknownSeekTime is reported until video introspection exists.
var UnknownSeekTime = VideoSeekTime{Start: -1, End: -1}

// FileProperties describes a stored file as seen by one client.
type FileProperties struct {
	ByteSize       int64         `json:"byte_size"`
	Width          int32         `json:"width"`  // -1 if unknown
	Height         int32         `json:"height"` // -1 if unknown
	IsImage        bool          `json:"is_image"`
	IsVideo        bool          `json:"is_video"`
	ReadPermitted  bool          `json:"read_permitted"`
	WritePermitted bool          `json:"write_permitted"`
	VideoLength    VideoSeekTime `json:"video_length"`
}

// ImageExtensions lists the extensions reported as images.
// The original table read "jgp"; "jpg" is what was meant.
var ImageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

// HasImageExtension reports whether name ends in a known image extension.
func HasImageExtension(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return ImageExtensions[strings.ToLower(ext)]
}

// ClientID identifies the remote connection that issued a request.
// It is scoped to a connection, not to a user account.
type ClientID string

type clientIDKey struct{}

// WithClientID returns a context carrying the caller's identity.
// Transports call this before dispatching into the service.
func WithClientID(ctx context.Context, id ClientID) context.Context {
	return context.WithValue(ctx, clientIDKey{}, id)
}

// ClientIDFromContext returns the caller identity, if the transport set one.
func ClientIDFromContext(ctx context.Context) (ClientID, bool) {
	id, ok := ctx.Value(clientIDKey{}).(ClientID)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
