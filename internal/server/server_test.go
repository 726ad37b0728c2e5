package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ajaxzhan/fileserver/internal/config"
	"github.com/ajaxzhan/fileserver/internal/fileservice"
	"github.com/ajaxzhan/fileserver/internal/ownership"
	"github.com/ajaxzhan/fileserver/internal/storage"
	"github.com/ajaxzhan/fileserver/pkg/api"
	"github.com/ajaxzhan/fileserver/pkg/types"
)

const bufSize = 1024 * 1024

var clip = types.FilePath{Directory: "videos", Filename: "clip1.mp4"}

// testServer wraps the gRPC server and its dependencies for testing.
type testServer struct {
	lis    *bufconn.Listener
	server *Server
	store  *storage.MemoryStore
	conn   *grpc.ClientConn
}

// setupTestServer creates a bufconn-backed server over a memory store.
func setupTestServer(t *testing.T, cfg *Config) *testServer {
	t.Helper()

	store := storage.NewMemoryStore()
	svc, err := fileservice.New(fileservice.Options{DataRoot: "/data"}, store, ownership.NewMemoryRegistry())
	if err != nil {
		t.Fatalf("failed to create file service: %v", err)
	}

	if cfg == nil {
		cfg = &Config{}
	}
	srv, err := New(cfg, svc)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	lis := bufconn.Listen(bufSize)
	go func() {
		if err := srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			t.Logf("server error: %v", err)
		}
	}()

	ts := &testServer{lis: lis, server: srv, store: store}
	t.Cleanup(ts.close)
	return ts
}

// client returns a stub connected to the test server.
func (ts *testServer) client(t *testing.T) api.FileServiceClient {
	t.Helper()

	if ts.conn == nil {
		dialer := func(context.Context, string) (net.Conn, error) {
			return ts.lis.Dial()
		}
		conn, err := grpc.NewClient("passthrough:///bufnet",
			grpc.WithContextDialer(dialer),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			t.Fatalf("failed to dial bufnet: %v", err)
		}
		ts.conn = conn
	}
	return api.NewFileServiceClient(ts.conn)
}

func (ts *testServer) close() {
	if ts.conn != nil {
		ts.conn.Close()
	}
	ts.server.Stop()
}

func expectCode(t *testing.T, err error, code codes.Code, kind types.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", code)
	}
	if got := status.Code(err); got != code {
		t.Errorf("expected code %v, got %v (%v)", code, got, err)
	}
	if got := api.KindFromStatus(err); got != kind {
		t.Errorf("expected kind %v, got %v", kind, got)
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ============================================
// FileService Tests
// ============================================

func TestFileService_RoundTrip(t *testing.T) {
	ts := setupTestServer(t, nil)
	c := ts.client(t)
	ctx := testContext(t)

	data := []byte{0x00, 0x01, 0xfe, 0xff, 'B'}
	if _, err := c.PutFile(ctx, &api.PutFileRequest{Path: clip, Data: data}); err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}

	resp, err := c.GetFile(ctx, &api.GetFileRequest{Path: clip})
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if !bytes.Equal(resp.Data, data) {
		t.Errorf("expected %v, got %v", data, resp.Data)
	}

	// bufconn gives every connection the same peer address.
	if !ts.store.Exists("/data/videos/clip1.mp4") {
		t.Error("expected file in store")
	}

	if _, err := c.DeleteFile(ctx, &api.DeleteFileRequest{Path: clip}); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	_, err = c.GetFile(ctx, &api.GetFileRequest{Path: clip})
	expectCode(t, err, codes.PermissionDenied, types.KindPermissionDenied)
}

func TestFileService_InvalidPath(t *testing.T) {
	ts := setupTestServer(t, nil)
	c := ts.client(t)
	ctx := testContext(t)

	bad := types.FilePath{Directory: "../etc", Filename: "passwd"}
	_, err := c.PutFile(ctx, &api.PutFileRequest{Path: bad, Data: []byte("X")})
	expectCode(t, err, codes.InvalidArgument, types.KindInvalidPath)

	if ts.store.Exists("/etc/passwd") {
		t.Error("no write may occur for an invalid path")
	}

	// The client can recover the typed error.
	if !errors.Is(api.ErrorFromStatus(err), types.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", api.ErrorFromStatus(err))
	}
}

func TestFileService_Properties(t *testing.T) {
	ts := setupTestServer(t, nil)
	c := ts.client(t)
	ctx := testContext(t)

	png := types.FilePath{Directory: "pics", Filename: "a.png"}
	img := []byte("\x89PNG\r\n\x1a\n")
	if _, err := c.PutFile(ctx, &api.PutFileRequest{Path: png, Data: img}); err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}

	props, err := c.GetProperties(ctx, &api.GetPropertiesRequest{Path: png})
	if err != nil {
		t.Fatalf("GetProperties failed: %v", err)
	}
	if !props.IsImage || props.IsVideo {
		t.Errorf("unexpected classification: %+v", props)
	}
	if props.ByteSize != int64(len(img)) {
		t.Errorf("expected size %d, got %d", len(img), props.ByteSize)
	}
	if !props.WritePermitted || !props.ReadPermitted {
		t.Errorf("owner should read and write: %+v", props)
	}
	if props.Width != -1 || props.Height != -1 || props.VideoLength != types.UnknownSeekTime {
		t.Errorf("media fields should be unknown: %+v", props)
	}

	_, err = c.GetProperties(ctx, &api.GetPropertiesRequest{Path: png, ClassifyVideo: true})
	expectCode(t, err, codes.Unimplemented, types.KindNotImplemented)
}

func TestFileService_Snapshot(t *testing.T) {
	ts := setupTestServer(t, nil)
	c := ts.client(t)
	ctx := testContext(t)

	_, err := c.CreateSnapshot(ctx, &api.CreateSnapshotRequest{Path: clip})
	expectCode(t, err, codes.Unimplemented, types.KindNotImplemented)
}

func TestFileService_LocalInvocation(t *testing.T) {
	noIdentity := IdentityFunc(func(context.Context) (types.ClientID, bool) { return "", false })
	ts := setupTestServer(t, &Config{Identity: noIdentity})
	c := ts.client(t)
	ctx := testContext(t)

	_, err := c.PutFile(ctx, &api.PutFileRequest{Path: clip, Data: []byte("x")})
	expectCode(t, err, codes.FailedPrecondition, types.KindLocalInvocationUnsupported)

	_, err = c.DeleteFile(ctx, &api.DeleteFileRequest{Path: clip})
	expectCode(t, err, codes.FailedPrecondition, types.KindLocalInvocationUnsupported)

	_, err = c.GetProperties(ctx, &api.GetPropertiesRequest{Path: clip})
	expectCode(t, err, codes.FailedPrecondition, types.KindLocalInvocationUnsupported)
}

func TestFileService_RateLimit(t *testing.T) {
	ts := setupTestServer(t, &Config{RequestsPerSecond: 0.001, Burst: 1})
	c := ts.client(t)
	ctx := testContext(t)

	if _, err := c.DeleteFile(ctx, &api.DeleteFileRequest{Path: clip}); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	_, err := c.DeleteFile(ctx, &api.DeleteFileRequest{Path: clip})
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("expected ResourceExhausted, got %v", err)
	}
}

// ============================================
// Host Tests
// ============================================

func startHost(t *testing.T, opts HostOptions) *Host {
	t.Helper()

	if opts.Server.GRPCAddr == "" {
		opts.Server.GRPCAddr = "127.0.0.1:0"
	}
	if opts.Backend == "" {
		opts.Backend = storage.BackendDisk
	}

	h := NewHost(opts)
	if err := h.Start("FileService", map[string]string{config.PropDataDir: t.TempDir()}, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { h.Stop() })
	return h
}

// dialTCP opens a separate TCP connection, and so a separate identity.
func dialTCP(t *testing.T, addr net.Addr) api.FileServiceClient {
	t.Helper()

	conn, err := grpc.NewClient(addr.String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial %s: %v", addr, err)
	}
	t.Cleanup(func() { conn.Close() })
	return api.NewFileServiceClient(conn)
}

func TestHost_TwoIdentities(t *testing.T) {
	h := startHost(t, HostOptions{})
	a := dialTCP(t, h.Addr())
	c := dialTCP(t, h.Addr())
	ctx := testContext(t)

	b := []byte("B")
	if _, err := a.PutFile(ctx, &api.PutFileRequest{Path: clip, Data: b}); err != nil {
		t.Fatalf("A PutFile failed: %v", err)
	}

	_, err := c.PutFile(ctx, &api.PutFileRequest{Path: clip, Data: []byte("C")})
	expectCode(t, err, codes.PermissionDenied, types.KindPermissionDenied)

	_, err = c.DeleteFile(ctx, &api.DeleteFileRequest{Path: clip})
	expectCode(t, err, codes.PermissionDenied, types.KindPermissionDenied)

	// Anyone may read.
	resp, err := c.GetFile(ctx, &api.GetFileRequest{Path: clip})
	if err != nil {
		t.Fatalf("C GetFile failed: %v", err)
	}
	if !bytes.Equal(resp.Data, b) {
		t.Errorf("content changed after denied put: %q", resp.Data)
	}

	if _, err := a.DeleteFile(ctx, &api.DeleteFileRequest{Path: clip}); err != nil {
		t.Fatalf("A DeleteFile failed: %v", err)
	}
	for _, cl := range []api.FileServiceClient{a, c} {
		_, err := cl.GetFile(ctx, &api.GetFileRequest{Path: clip})
		expectCode(t, err, codes.PermissionDenied, types.KindPermissionDenied)
	}

	// Deleting something that never existed succeeds for anyone.
	ghost := types.FilePath{Directory: "none", Filename: "ghost"}
	if _, err := c.DeleteFile(ctx, &api.DeleteFileRequest{Path: ghost}); err != nil {
		t.Errorf("delete of missing path failed: %v", err)
	}
}

func TestHost_FileTooLarge(t *testing.T) {
	h := startHost(t, HostOptions{MaxTransferSize: 3})
	c := dialTCP(t, h.Addr())
	ctx := testContext(t)

	if _, err := c.PutFile(ctx, &api.PutFileRequest{Path: clip, Data: []byte("1234")}); err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}
	_, err := c.GetFile(ctx, &api.GetFileRequest{Path: clip})
	expectCode(t, err, codes.ResourceExhausted, types.KindFileTooLarge)
}

func TestHost_TransferAtLimit(t *testing.T) {
	const limit = 900

	tests := []struct {
		name string
		msg  int
	}{
		{"derived message size", 0},
		{"configured message size", api.MessageSizeFor(limit)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := startHost(t, HostOptions{
				Server:          Config{MaxMessageSize: tt.msg},
				MaxTransferSize: limit,
			})
			c := dialTCP(t, h.Addr())
			ctx := testContext(t)

			data := bytes.Repeat([]byte{0xff}, limit)
			if _, err := c.PutFile(ctx, &api.PutFileRequest{Path: clip, Data: data}); err != nil {
				t.Fatalf("PutFile at the limit failed: %v", err)
			}
			resp, err := c.GetFile(ctx, &api.GetFileRequest{Path: clip})
			if err != nil {
				t.Fatalf("GetFile at the limit failed: %v", err)
			}
			if !bytes.Equal(resp.Data, data) {
				t.Errorf("expected %d bytes back, got %d", len(data), len(resp.Data))
			}

			over := types.FilePath{Directory: "videos", Filename: "over.mp4"}
			if _, err := c.PutFile(ctx, &api.PutFileRequest{Path: over, Data: append(data, 0)}); err != nil {
				t.Fatalf("PutFile one byte over failed: %v", err)
			}
			_, err = c.GetFile(ctx, &api.GetFileRequest{Path: over})
			expectCode(t, err, codes.ResourceExhausted, types.KindFileTooLarge)
		})
	}
}

func TestHost_Lifecycle(t *testing.T) {
	h := NewHost(HostOptions{Server: Config{GRPCAddr: "127.0.0.1:0"}, Backend: storage.BackendMemory})
	if h.Ready() || h.State() != StateUninitialized {
		t.Fatalf("new host should be uninitialized, got %v", h.State())
	}
	if h.Addr() != nil || h.Service() != nil {
		t.Error("nothing should be bound before Start")
	}

	props := map[string]string{config.PropDataDir: "/data"}
	if err := h.Start("FileService", props, []string{"--flag"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !h.Ready() || !h.Ready() {
		t.Error("host should report ready, repeatedly")
	}
	if h.Service().DataRoot() != "/data" {
		t.Errorf("unexpected data root %q", h.Service().DataRoot())
	}

	err := h.Start("FileService", props, nil)
	if !IsMisuse(err) {
		t.Errorf("expected InternalMisuse on second Start, got %v", err)
	}
	if types.KindOf(err) != types.KindInternalMisuse {
		t.Errorf("expected KindInternalMisuse, got %v", types.KindOf(err))
	}

	if err := h.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if h.State() != StateStopped {
		t.Errorf("expected stopped, got %v", h.State())
	}
	if err := h.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
	if !IsMisuse(h.Start("FileService", props, nil)) {
		t.Error("restart of a stopped host should be misuse")
	}
}

func TestHost_MissingDataDir(t *testing.T) {
	h := NewHost(HostOptions{Server: Config{GRPCAddr: "127.0.0.1:0"}, Backend: storage.BackendMemory})

	err := h.Start("FileService", map[string]string{}, nil)
	if !IsMisuse(err) {
		t.Errorf("expected InternalMisuse, got %v", err)
	}
	if h.Ready() {
		t.Error("host must not be ready after a failed Start")
	}
}

func TestHostOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.HTTPAddr = ":8080"
	cfg.Server.RateLimit.RequestsPerSecond = 5
	cfg.Server.RateLimit.Burst = 10
	cfg.Ownership.Shards = 16

	opts := HostOptionsFromConfig(cfg)
	if opts.Server.GRPCAddr != cfg.Server.GRPCAddr || opts.Server.HTTPAddr != ":8080" {
		t.Errorf("addresses not mapped: %+v", opts.Server)
	}
	if opts.Server.RequestsPerSecond != 5 || opts.Server.Burst != 10 {
		t.Errorf("rate limit not mapped: %+v", opts.Server)
	}
	if opts.Backend != "disk" || opts.Shards != 16 || opts.MaxTransferSize != cfg.Storage.MaxTransferSize {
		t.Errorf("storage not mapped: %+v", opts)
	}
}

// ============================================
// Gateway Tests
// ============================================

func gatewayRequest(t *testing.T, h http.Handler, method, target, remote string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeGatewayError(t *testing.T, rec *httptest.ResponseRecorder) GatewayError {
	t.Helper()
	var ge GatewayError
	if err := json.Unmarshal(rec.Body.Bytes(), &ge); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return ge
}

func TestGateway(t *testing.T) {
	ts := setupTestServer(t, nil)
	h, err := ts.server.GatewayHandler()
	if err != nil {
		t.Fatalf("GatewayHandler failed: %v", err)
	}

	const a, c = "10.0.0.1:5000", "10.0.0.2:5000"
	target := "/v1/files?dir=videos&name=clip1.mp4"

	rec := gatewayRequest(t, h, http.MethodPut, target, a, []byte("B"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT: expected 204, got %d: %s", rec.Code, rec.Body)
	}

	rec = gatewayRequest(t, h, http.MethodPut, target, c, []byte("C"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("PUT by other: expected 403, got %d", rec.Code)
	}
	if ge := decodeGatewayError(t, rec); ge.Kind != "PermissionDenied" {
		t.Errorf("expected kind PermissionDenied, got %+v", ge)
	}

	rec = gatewayRequest(t, h, http.MethodGet, target, c, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "B" {
		t.Errorf("GET: expected 200 B, got %d %q", rec.Code, rec.Body)
	}

	rec = gatewayRequest(t, h, http.MethodGet, "/v1/properties?dir=videos&name=clip1.mp4", a, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("properties: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var props types.FileProperties
	if err := json.Unmarshal(rec.Body.Bytes(), &props); err != nil {
		t.Fatalf("failed to decode properties: %v", err)
	}
	if props.ByteSize != 1 || !props.WritePermitted || props.IsImage {
		t.Errorf("unexpected properties: %+v", props)
	}

	rec = gatewayRequest(t, h, http.MethodGet, "/v1/properties?dir=videos&name=clip1.mp4&classify_video=true", a, nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("classify_video: expected 501, got %d", rec.Code)
	}

	rec = gatewayRequest(t, h, http.MethodGet, "/v1/properties?dir=videos&name=clip1.mp4&classify_video=maybe", a, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad classify_video: expected 400, got %d", rec.Code)
	}

	rec = gatewayRequest(t, h, http.MethodPut, "/v1/files?dir=../etc&name=passwd", a, []byte("X"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid path: expected 400, got %d", rec.Code)
	}
	if ge := decodeGatewayError(t, rec); ge.Kind != "InvalidPath" {
		t.Errorf("expected kind InvalidPath, got %+v", ge)
	}

	rec = gatewayRequest(t, h, http.MethodPost, "/v1/snapshots?dir=videos&name=clip1.mp4", a, nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("snapshot: expected 501, got %d", rec.Code)
	}

	rec = gatewayRequest(t, h, http.MethodDelete, target, a, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE: expected 204, got %d", rec.Code)
	}

	rec = gatewayRequest(t, h, http.MethodGet, target, a, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("GET after delete: expected 403, got %d", rec.Code)
	}
}

func TestGateway_LocalInvocation(t *testing.T) {
	ts := setupTestServer(t, nil)
	h, err := ts.server.GatewayHandler()
	if err != nil {
		t.Fatalf("GatewayHandler failed: %v", err)
	}

	rec := gatewayRequest(t, h, http.MethodPut, "/v1/files?dir=a&name=b", "", []byte("x"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for FailedPrecondition, got %d", rec.Code)
	}
	if ge := decodeGatewayError(t, rec); ge.Kind != "LocalInvocationUnsupported" {
		t.Errorf("unexpected error body: %+v", ge)
	}
}

// ============================================
// Interceptor Tests
// ============================================

func TestRecoveryInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: api.FullMethodGetFile}
	panicking := func(context.Context, any) (any, error) { panic("boom") }

	resp, err := recoveryInterceptor()(context.Background(), nil, info, panicking)
	if resp != nil {
		t.Errorf("expected nil response, got %v", resp)
	}
	if status.Code(err) != codes.Internal {
		t.Errorf("expected Internal, got %v", err)
	}
}

func TestRateLimitInterceptor(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(0.001), 1)
	interceptor := rateLimitInterceptor(limiter)
	info := &grpc.UnaryServerInfo{FullMethod: api.FullMethodPutFile}
	ok := func(context.Context, any) (any, error) { return "ok", nil }

	if _, err := interceptor(context.Background(), nil, info, ok); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	if _, err := interceptor(context.Background(), nil, info, ok); status.Code(err) != codes.ResourceExhausted {
		t.Errorf("expected ResourceExhausted, got %v", err)
	}
}

func TestPeerIdentity(t *testing.T) {
	var ex PeerIdentity

	if _, ok := ex.ClientID(context.Background()); ok {
		t.Error("no peer should mean no identity")
	}

	addr := &net.TCPAddr{IP: net.ParseIP("10.1.2.3"), Port: 4242}
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: addr})
	id, ok := ex.ClientID(ctx)
	if !ok || id != "10.1.2.3:4242" {
		t.Errorf("expected 10.1.2.3:4242, got %q %v", id, ok)
	}

	ctx = peer.NewContext(context.Background(), &peer.Peer{})
	if _, ok := ex.ClientID(ctx); ok {
		t.Error("peer without address should mean no identity")
	}
}

func TestNew_Validation(t *testing.T) {
	svc, err := fileservice.New(fileservice.Options{DataRoot: "/data"}, storage.NewMemoryStore(), ownership.NewMemoryRegistry())
	if err != nil {
		t.Fatalf("failed to create file service: %v", err)
	}
	if _, err := New(nil, svc); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New(&Config{}, nil); err == nil {
		t.Error("expected error for nil service")
	}

	small, err := fileservice.New(fileservice.Options{DataRoot: "/data", MaxTransferSize: 1000},
		storage.NewMemoryStore(), ownership.NewMemoryRegistry())
	if err != nil {
		t.Fatalf("failed to create file service: %v", err)
	}
	if _, err := New(&Config{MaxMessageSize: 1000}, small); err == nil {
		t.Error("expected error when encoded files cannot fit in a message")
	}
	srv, err := New(&Config{}, small)
	if err != nil {
		t.Fatalf("New with derived message size failed: %v", err)
	}
	if got := srv.maxMessageSize(); got != api.MessageSizeFor(1000) {
		t.Errorf("expected derived message size %d, got %d", api.MessageSizeFor(1000), got)
	}
}
