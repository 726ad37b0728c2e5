// Package client is a Go client for the file service.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ajaxzhan/fileserver/pkg/api"
	"github.com/ajaxzhan/fileserver/pkg/types"
)

// DefaultPort is the port a file service listens on unless configured
// otherwise.
const DefaultPort = 10110

// DefaultTarget returns host at the default port.
func DefaultTarget(host string) string {
	return net.JoinHostPort(host, strconv.Itoa(DefaultPort))
}

// Client calls a remote file service. Errors returned by its methods are
// *types.ServiceError whenever the server reported one.
type Client struct {
	conn        *grpc.ClientConn
	rpc         api.FileServiceClient
	maxTransfer int64
}

// Dial connects to target without transport security. Extra options are
// applied after the defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	defaults := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(api.MaxMessageSize),
			grpc.MaxCallSendMsgSize(api.MaxMessageSize),
		),
	}
	conn, err := grpc.NewClient(target, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return &Client{conn: conn, rpc: api.NewFileServiceClient(conn), maxTransfer: api.DefaultMaxTransferSize}, nil
}

// New wraps an existing connection. Close does not close it.
func New(cc grpc.ClientConnInterface) *Client {
	return &Client{rpc: api.NewFileServiceClient(cc), maxTransfer: api.DefaultMaxTransferSize}
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// PutFile uploads data to fp. Data too large for a single message fails
// with KindFileTooLarge before anything is sent.
func (c *Client) PutFile(ctx context.Context, fp types.FilePath, data []byte) error {
	if int64(len(data)) > c.maxTransfer {
		return types.NewError(types.KindFileTooLarge, "put", fp.Relative(),
			fmt.Sprintf("%d bytes exceeds the %d byte message limit", len(data), c.maxTransfer))
	}
	_, err := c.rpc.PutFile(ctx, &api.PutFileRequest{Path: fp, Data: data})
	return api.ErrorFromStatus(err)
}

// GetFile downloads fp.
func (c *Client) GetFile(ctx context.Context, fp types.FilePath) ([]byte, error) {
	resp, err := c.rpc.GetFile(ctx, &api.GetFileRequest{Path: fp})
	if err != nil {
		return nil, api.ErrorFromStatus(err)
	}
	return resp.Data, nil
}

// DeleteFile removes fp.
func (c *Client) DeleteFile(ctx context.Context, fp types.FilePath) error {
	_, err := c.rpc.DeleteFile(ctx, &api.DeleteFileRequest{Path: fp})
	return api.ErrorFromStatus(err)
}

// GetProperties describes fp.
func (c *Client) GetProperties(ctx context.Context, fp types.FilePath, classifyVideo bool) (*types.FileProperties, error) {
	props, err := c.rpc.GetProperties(ctx, &api.GetPropertiesRequest{Path: fp, ClassifyVideo: classifyVideo})
	if err != nil {
		return nil, api.ErrorFromStatus(err)
	}
	return props, nil
}

// CreateSnapshot asks the server to snapshot fp.
func (c *Client) CreateSnapshot(ctx context.Context, fp types.FilePath) (types.FilePath, error) {
	resp, err := c.rpc.CreateSnapshot(ctx, &api.CreateSnapshotRequest{Path: fp})
	if err != nil {
		return types.FilePath{}, api.ErrorFromStatus(err)
	}
	return resp.Path, nil
}

// UploadReport lists the outcome of PutLocalFiles.
type UploadReport struct {
	Uploaded []types.FilePath `json:"uploaded"`
	// Rejected paths already exist on the server under another owner.
	Rejected []types.FilePath `json:"rejected"`
}

// PutLocalFiles uploads each path from localRoot/<dir>/<name> to the same
// remote path. Paths the server refuses with PermissionDenied are reported
// as rejected; any other failure stops the batch and is returned along with
// the partial report.
func (c *Client) PutLocalFiles(ctx context.Context, localRoot string, paths []types.FilePath) (*UploadReport, error) {
	report := &UploadReport{}
	for _, fp := range paths {
		local := filepath.Join(localRoot, fp.Directory, fp.Filename)
		data, err := os.ReadFile(local)
		if err != nil {
			return report, fmt.Errorf("cannot read local file %s: %w", local, err)
		}

		err = c.PutFile(ctx, fp, data)
		switch {
		case err == nil:
			report.Uploaded = append(report.Uploaded, fp)
		case errors.Is(err, types.ErrPermissionDenied):
			report.Rejected = append(report.Rejected, fp)
		default:
			return report, err
		}
	}
	return report, nil
}

// DeleteReport lists the outcome of DeleteAll.
type DeleteReport struct {
	Deleted    []types.FilePath `json:"deleted"`
	NotDeleted []types.FilePath `json:"not_deleted"`
	Errors     []error          `json:"-"`
}

// DeleteAll tries to delete every path. Failures are collected in the
// report rather than returned.
func (c *Client) DeleteAll(ctx context.Context, paths []types.FilePath) *DeleteReport {
	report := &DeleteReport{}
	for _, fp := range paths {
		if err := c.DeleteFile(ctx, fp); err != nil {
			report.NotDeleted = append(report.NotDeleted, fp)
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Deleted = append(report.Deleted, fp)
	}
	return report
}
