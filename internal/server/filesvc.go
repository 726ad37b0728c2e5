package server

import (
	"context"

	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/ajaxzhan/fileserver/internal/fileservice"
	"github.com/ajaxzhan/fileserver/pkg/api"
	"github.com/ajaxzhan/fileserver/pkg/types"
)

// ============================================
// FileServiceServer Implementation
// ============================================

// FileServiceServer implements the FileService gRPC interface on top of a
// fileservice.Service. The caller identity must already be in the context.
type FileServiceServer struct {
	svc *fileservice.Service
}

// NewFileServiceServer creates a new FileServiceServer.
func NewFileServiceServer(svc *fileservice.Service) *FileServiceServer {
	return &FileServiceServer{svc: svc}
}

// PutFile stores a file on behalf of the caller.
func (s *FileServiceServer) PutFile(ctx context.Context, req *api.PutFileRequest) (*emptypb.Empty, error) {
	if err := s.svc.PutFile(ctx, req.Path, req.Data); err != nil {
		return nil, api.ToStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// GetFile returns the whole contents of a file.
func (s *FileServiceServer) GetFile(ctx context.Context, req *api.GetFileRequest) (*api.GetFileResponse, error) {
	data, err := s.svc.GetFile(ctx, req.Path)
	if err != nil {
		return nil, api.ToStatusError(err)
	}
	return &api.GetFileResponse{Data: data}, nil
}

// DeleteFile removes a file the caller owns.
func (s *FileServiceServer) DeleteFile(ctx context.Context, req *api.DeleteFileRequest) (*emptypb.Empty, error) {
	if err := s.svc.DeleteFile(ctx, req.Path); err != nil {
		return nil, api.ToStatusError(err)
	}
	return &emptypb.Empty{}, nil
}

// GetProperties describes a file.
func (s *FileServiceServer) GetProperties(ctx context.Context, req *api.GetPropertiesRequest) (*types.FileProperties, error) {
	props, err := s.svc.GetProperties(ctx, req.Path, fileservice.PropertiesOptions{
		ClassifyVideo: req.ClassifyVideo,
	})
	if err != nil {
		return nil, api.ToStatusError(err)
	}
	return props, nil
}

// CreateSnapshot always fails with Unimplemented for valid paths.
func (s *FileServiceServer) CreateSnapshot(ctx context.Context, req *api.CreateSnapshotRequest) (*api.CreateSnapshotResponse, error) {
	fp, err := s.svc.CreateSnapshot(ctx, req.Path)
	if err != nil {
		return nil, api.ToStatusError(err)
	}
	return &api.CreateSnapshotResponse{Path: fp}, nil
}

var _ api.FileServiceServer = (*FileServiceServer)(nil)
