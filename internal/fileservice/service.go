// Package fileservice implements permission-checked file operations on top of
// path resolution, ownership tracking and a storage backend.
package fileservice

import (
	"context"
	"errors"

	"github.com/ajaxzhan/fileserver/internal/logging"
	"github.com/ajaxzhan/fileserver/internal/ownership"
	"github.com/ajaxzhan/fileserver/internal/pathres"
	"github.com/ajaxzhan/fileserver/internal/storage"
	"github.com/ajaxzhan/fileserver/pkg/api"
	"github.com/ajaxzhan/fileserver/pkg/types"
)

// DefaultMaxTransferSize is the largest file GetFile will return when
// Options.MaxTransferSize is unset. It is the largest file a single message
// can carry.
const DefaultMaxTransferSize = api.DefaultMaxTransferSize

// Options configures a Service.
type Options struct {
	DataRoot        string
	MaxTransferSize int64
}

// PropertiesOptions selects optional work for GetProperties.
type PropertiesOptions struct {
	// ClassifyVideo asks for video detection, which is not supported.
	ClassifyVideo bool
}

// Service is the file service. It is safe for concurrent use.
type Service struct {
	resolver    *pathres.Resolver
	store       storage.Store
	owners      ownership.Registry
	maxTransfer int64
}

// New creates a Service over store and owners. The data root must be an
// absolute path.
func New(opts Options, store storage.Store, owners ownership.Registry) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if owners == nil {
		return nil, errors.New("ownership registry is required")
	}

	resolver, err := pathres.New(opts.DataRoot)
	if err != nil {
		return nil, err
	}

	maxTransfer := opts.MaxTransferSize
	if maxTransfer <= 0 {
		maxTransfer = DefaultMaxTransferSize
	}

	return &Service{
		resolver:    resolver,
		store:       store,
		owners:      owners,
		maxTransfer: maxTransfer,
	}, nil
}

// DataRoot returns the directory all paths are confined to.
func (s *Service) DataRoot() string {
	return s.resolver.Root()
}

// MaxTransferSize returns the GetFile size limit in bytes.
func (s *Service) MaxTransferSize() int64 {
	return s.maxTransfer
}

// PutFile stores data at fp, replacing any previous contents. An existing
// file may only be replaced by the identity that created it, and only while
// the store still permits writing it.
func (s *Service) PutFile(ctx context.Context, fp types.FilePath, data []byte) error {
	const op = "put"

	path, err := s.resolver.Resolve(fp)
	if err != nil {
		return withOp(err, op)
	}
	id, err := requireIdentity(ctx, op, fp)
	if err != nil {
		return err
	}

	if s.store.Exists(path) && (!s.owners.IsOwner(id, path) || !s.store.CanWrite(path)) {
		logging.Warn("Put denied", logging.Client(string(id)), logging.Path(path))
		return types.NewError(types.KindPermissionDenied, op, fp.Relative(), "")
	}

	if err := s.store.WriteAll(path, data); err != nil {
		logging.Error("Put failed", logging.Client(string(id)), logging.Path(path), logging.Err(err))
		return types.WrapError(types.KindStorageIO, op, fp.Relative(), err)
	}
	s.owners.Record(id, path)

	logging.Info("File stored",
		logging.Client(string(id)),
		logging.Path(path),
		logging.Int("bytes", len(data)),
	)
	logging.Debug("Ownership updated",
		logging.Client(string(id)),
		logging.Int("owned", len(s.owners.Owned(id))),
	)
	return nil
}

// GetFile returns the contents of fp. Any caller may read a file the store
// permits reading; no identity is required.
func (s *Service) GetFile(ctx context.Context, fp types.FilePath) ([]byte, error) {
	const op = "get"

	path, err := s.resolver.Resolve(fp)
	if err != nil {
		return nil, withOp(err, op)
	}

	if !s.store.CanRead(path) {
		logging.Warn("Get denied", logging.Path(path))
		return nil, types.NewError(types.KindPermissionDenied, op, fp.Relative(), "")
	}

	size, err := s.store.Size(path)
	if err != nil {
		return nil, types.WrapError(types.KindStorageIO, op, fp.Relative(), err)
	}
	if size > s.maxTransfer {
		logging.Warn("Get refused, file too large",
			logging.Path(path),
			logging.Int64("size", size),
			logging.Int64("limit", s.maxTransfer),
		)
		return nil, types.NewError(types.KindFileTooLarge, op, fp.Relative(), "")
	}

	data, err := s.store.ReadAll(path, size)
	if err != nil {
		return nil, types.WrapError(types.KindStorageIO, op, fp.Relative(), err)
	}
	if int64(len(data)) < size {
		logging.Warn("Short read",
			logging.Path(path),
			logging.Int64("expected", size),
			logging.Int("got", len(data)),
		)
		return nil, types.NewError(types.KindIncompleteRead, op, fp.Relative(), "")
	}

	logging.Debug("File served", logging.Path(path), logging.Int64("bytes", size))
	return data, nil
}

// DeleteFile removes fp. Deleting a path that does not exist succeeds.
// The registry keeps the caller's ownership record after removal.
func (s *Service) DeleteFile(ctx context.Context, fp types.FilePath) error {
	const op = "delete"

	path, id, err := s.authorizeOwner(ctx, op, fp)
	if err != nil {
		return err
	}

	if err := s.store.Delete(path); err != nil {
		logging.Error("Delete failed", logging.Client(string(id)), logging.Path(path), logging.Err(err))
		return types.WrapError(types.KindStorageIO, op, fp.Relative(), err)
	}

	logging.Info("File deleted", logging.Client(string(id)), logging.Path(path))
	return nil
}

// GetProperties describes fp as seen by the caller. It is gated like
// DeleteFile: an existing file must be owned by the caller.
func (s *Service) GetProperties(ctx context.Context, fp types.FilePath, opts PropertiesOptions) (*types.FileProperties, error) {
	const op = "properties"

	path, id, err := s.authorizeOwner(ctx, op, fp)
	if err != nil {
		return nil, err
	}
	if opts.ClassifyVideo {
		return nil, types.NewError(types.KindNotImplemented, op, fp.Relative(), "video classification not implemented")
	}

	var size int64
	if s.store.Exists(path) {
		if size, err = s.store.Size(path); err != nil {
			return nil, types.WrapError(types.KindStorageIO, op, fp.Relative(), err)
		}
	}

	props := &types.FileProperties{
		ByteSize:       size,
		Width:          -1,
		Height:         -1,
		IsImage:        types.HasImageExtension(fp.Filename),
		IsVideo:        false,
		ReadPermitted:  s.store.CanRead(path),
		WritePermitted: s.owners.IsOwner(id, path),
		VideoLength:    types.UnknownSeekTime,
	}
	logging.Debug("Properties read",
		logging.Client(string(id)),
		logging.Path(path),
		logging.Int64("bytes", props.ByteSize),
		logging.Bool("image", props.IsImage),
		logging.Bool("writable", props.WritePermitted),
	)
	return props, nil
}

// CreateSnapshot is not supported. The path is still validated so that
// malformed requests report InvalidPath.
func (s *Service) CreateSnapshot(ctx context.Context, fp types.FilePath) (types.FilePath, error) {
	const op = "snapshot"

	if _, err := s.resolver.Resolve(fp); err != nil {
		return types.FilePath{}, withOp(err, op)
	}
	return types.FilePath{}, types.NewError(types.KindNotImplemented, op, fp.Relative(), "snapshots not implemented")
}

// authorizeOwner resolves fp, requires an identity, and denies access to an
// existing path the caller does not own.
func (s *Service) authorizeOwner(ctx context.Context, op string, fp types.FilePath) (string, types.ClientID, error) {
	path, err := s.resolver.Resolve(fp)
	if err != nil {
		return "", "", withOp(err, op)
	}
	id, err := requireIdentity(ctx, op, fp)
	if err != nil {
		return "", "", err
	}

	if s.store.Exists(path) && !s.owners.IsOwner(id, path) {
		logging.Warn("Access denied",
			logging.String("op", op),
			logging.Client(string(id)),
			logging.Path(path),
		)
		return "", "", types.NewError(types.KindPermissionDenied, op, fp.Relative(), "")
	}
	return path, id, nil
}

func requireIdentity(ctx context.Context, op string, fp types.FilePath) (types.ClientID, error) {
	id, ok := types.ClientIDFromContext(ctx)
	if !ok {
		return "", types.NewError(types.KindLocalInvocationUnsupported, op, fp.Relative(), "")
	}
	return id, nil
}

// withOp stamps the operation name onto a resolver error.
func withOp(err error, op string) error {
	var se *types.ServiceError
	if errors.As(err, &se) {
		cp := *se
		cp.Op = op
		return &cp
	}
	return err
}
