package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/ajaxzhan/fileserver/pkg/types"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "fileserver.v1.FileService"

// Full method names, as seen by interceptors.
const (
	FullMethodPutFile        = "/" + ServiceName + "/PutFile"
	FullMethodGetFile        = "/" + ServiceName + "/GetFile"
	FullMethodDeleteFile     = "/" + ServiceName + "/DeleteFile"
	FullMethodGetProperties  = "/" + ServiceName + "/GetProperties"
	FullMethodCreateSnapshot = "/" + ServiceName + "/CreateSnapshot"
)

// FileServiceServer is the server API for the file service.
type FileServiceServer interface {
	PutFile(context.Context, *PutFileRequest) (*emptypb.Empty, error)
	GetFile(context.Context, *GetFileRequest) (*GetFileResponse, error)
	DeleteFile(context.Context, *DeleteFileRequest) (*emptypb.Empty, error)
	GetProperties(context.Context, *GetPropertiesRequest) (*types.FileProperties, error)
	CreateSnapshot(context.Context, *CreateSnapshotRequest) (*CreateSnapshotResponse, error)
}

// RegisterFileServiceServer registers srv with s.
func RegisterFileServiceServer(s grpc.ServiceRegistrar, srv FileServiceServer) {
	s.RegisterService(&FileServiceDesc, srv)
}

// FileServiceDesc is the grpc.ServiceDesc for the file service.
var FileServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FileServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PutFile", Handler: putFileHandler},
		{MethodName: "GetFile", Handler: getFileHandler},
		{MethodName: "DeleteFile", Handler: deleteFileHandler},
		{MethodName: "GetProperties", Handler: getPropertiesHandler},
		{MethodName: "CreateSnapshot", Handler: createSnapshotHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fileserver/v1/file_service",
}

func putFileHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PutFileRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FileServiceServer).PutFile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodPutFile}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FileServiceServer).PutFile(ctx, req.(*PutFileRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getFileHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetFileRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FileServiceServer).GetFile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodGetFile}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FileServiceServer).GetFile(ctx, req.(*GetFileRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func deleteFileHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeleteFileRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FileServiceServer).DeleteFile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodDeleteFile}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FileServiceServer).DeleteFile(ctx, req.(*DeleteFileRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getPropertiesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetPropertiesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FileServiceServer).GetProperties(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodGetProperties}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FileServiceServer).GetProperties(ctx, req.(*GetPropertiesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func createSnapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateSnapshotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FileServiceServer).CreateSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodCreateSnapshot}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FileServiceServer).CreateSnapshot(ctx, req.(*CreateSnapshotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// FileServiceClient is the client API for the file service.
type FileServiceClient interface {
	PutFile(ctx context.Context, in *PutFileRequest, opts ...grpc.CallOption) (*emptypb.Empty, error)
	GetFile(ctx context.Context, in *GetFileRequest, opts ...grpc.CallOption) (*GetFileResponse, error)
	DeleteFile(ctx context.Context, in *DeleteFileRequest, opts ...grpc.CallOption) (*emptypb.Empty, error)
	GetProperties(ctx context.Context, in *GetPropertiesRequest, opts ...grpc.CallOption) (*types.FileProperties, error)
	CreateSnapshot(ctx context.Context, in *CreateSnapshotRequest, opts ...grpc.CallOption) (*CreateSnapshotResponse, error)
}

type fileServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewFileServiceClient returns a stub that speaks the JSON codec over cc.
func NewFileServiceClient(cc grpc.ClientConnInterface) FileServiceClient {
	return &fileServiceClient{cc: cc}
}

func (c *fileServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *fileServiceClient) PutFile(ctx context.Context, in *PutFileRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.invoke(ctx, FullMethodPutFile, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) GetFile(ctx context.Context, in *GetFileRequest, opts ...grpc.CallOption) (*GetFileResponse, error) {
	out := new(GetFileResponse)
	if err := c.invoke(ctx, FullMethodGetFile, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) DeleteFile(ctx context.Context, in *DeleteFileRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.invoke(ctx, FullMethodDeleteFile, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) GetProperties(ctx context.Context, in *GetPropertiesRequest, opts ...grpc.CallOption) (*types.FileProperties, error) {
	out := new(types.FileProperties)
	if err := c.invoke(ctx, FullMethodGetProperties, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) CreateSnapshot(ctx context.Context, in *CreateSnapshotRequest, opts ...grpc.CallOption) (*CreateSnapshotResponse, error) {
	out := new(CreateSnapshotResponse)
	if err := c.invoke(ctx, FullMethodCreateSnapshot, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
