package server

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/ajaxzhan/fileserver/internal/config"
	"github.com/ajaxzhan/fileserver/internal/fileservice"
	"github.com/ajaxzhan/fileserver/internal/logging"
	"github.com/ajaxzhan/fileserver/internal/ownership"
	"github.com/ajaxzhan/fileserver/internal/storage"
	"github.com/ajaxzhan/fileserver/pkg/types"
)

// Lifecycle is the contract between a hosting process and the service.
type Lifecycle interface {
	// Start binds the transport, reads the data root from props and begins
	// serving.
	Start(name string, props map[string]string, args []string) error

	// Stop deactivates the transport.
	Stop() error
}

// State is a Host lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// HostOptions configures what a Host builds on Start.
type HostOptions struct {
	Server          Config
	Backend         string // storage backend, see storage.New
	MaxTransferSize int64
	Shards          int // ownership registry shards
}

// HostOptionsFromConfig maps the file configuration onto HostOptions.
func HostOptionsFromConfig(cfg *config.Config) HostOptions {
	return HostOptions{
		Server: Config{
			GRPCAddr:          cfg.Server.GRPCAddr,
			HTTPAddr:          cfg.Server.HTTPAddr,
			MaxMessageSize:    cfg.Server.MaxMessageSize,
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		},
		Backend:         cfg.Storage.Backend,
		MaxTransferSize: cfg.Storage.MaxTransferSize,
		Shards:          cfg.Ownership.Shards,
	}
}

// Host owns one file service instance and its transport. It moves from
// Uninitialized to Ready on Start and to Stopped on Stop.
type Host struct {
	opts HostOptions

	mu       sync.Mutex
	state    State
	name     string
	server   *Server
	service  *fileservice.Service
	grpcAddr net.Addr
	httpAddr net.Addr
	errCh    chan error
}

// NewHost creates a host in the Uninitialized state.
func NewHost(opts HostOptions) *Host {
	return &Host{
		opts:  opts,
		errCh: make(chan error, 2),
	}
}

// Start brings the service up. Calling Start on a host that has already
// been started is a programming error and returns KindInternalMisuse.
func (h *Host) Start(name string, props map[string]string, args []string) error {
	const op = "start"

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateUninitialized {
		return types.NewError(types.KindInternalMisuse, op, "",
			fmt.Sprintf("service %q already %s", h.name, h.state))
	}

	grpcLis, err := net.Listen("tcp", h.opts.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}
	var httpLis net.Listener
	if h.opts.Server.HTTPAddr != "" {
		if httpLis, err = net.Listen("tcp", h.opts.Server.HTTPAddr); err != nil {
			grpcLis.Close()
			return fmt.Errorf("failed to listen on HTTP address: %w", err)
		}
	}
	closeListeners := func() {
		grpcLis.Close()
		if httpLis != nil {
			httpLis.Close()
		}
	}

	dataDir := props[config.PropDataDir]
	if dataDir == "" {
		closeListeners()
		return types.NewError(types.KindInternalMisuse, op, "",
			fmt.Sprintf("property %s is required", config.PropDataDir))
	}

	store, err := storage.New(h.opts.Backend)
	if err != nil {
		closeListeners()
		return err
	}
	svc, err := fileservice.New(fileservice.Options{
		DataRoot:        dataDir,
		MaxTransferSize: h.opts.MaxTransferSize,
	}, store, ownership.New(h.opts.Shards))
	if err != nil {
		closeListeners()
		return fmt.Errorf("failed to create file service: %w", err)
	}

	srvCfg := h.opts.Server
	srv, err := New(&srvCfg, svc)
	if err != nil {
		closeListeners()
		return err
	}

	go func() {
		if err := srv.Serve(grpcLis); err != nil {
			h.errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	if httpLis != nil {
		go func() {
			if err := srv.ServeGateway(httpLis); err != nil {
				h.errCh <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()
		h.httpAddr = httpLis.Addr()
	}

	h.name = name
	h.server = srv
	h.service = svc
	h.grpcAddr = grpcLis.Addr()
	h.state = StateReady

	logging.Info("File service started",
		logging.String("name", name),
		logging.String("grpc_addr", h.grpcAddr.String()),
		logging.Path(svc.DataRoot()),
		logging.Int("args", len(args)),
	)
	if h.httpAddr != nil {
		logging.Info("REST gateway listening", logging.String("addr", h.httpAddr.String()))
	}
	return nil
}

// Stop shuts the transport down. Stopping a host that is not Ready is a no-op.
func (h *Host) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateReady {
		return nil
	}
	h.server.Stop()
	h.state = StateStopped

	logging.Info("File service stopped", logging.String("name", h.name))
	return nil
}

// Ready reports whether the host is serving. It may be called any number of
// times from any goroutine.
func (h *Host) Ready() bool {
	return h.State() == StateReady
}

// State returns the current lifecycle state.
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Addr returns the bound gRPC address, or nil before Start.
func (h *Host) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.grpcAddr
}

// HTTPAddr returns the bound gateway address, or nil if there is none.
func (h *Host) HTTPAddr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.httpAddr
}

// Service returns the running file service, or nil before Start.
func (h *Host) Service() *fileservice.Service {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.service
}

// Err delivers transport failures that happen after Start returned.
func (h *Host) Err() <-chan error {
	return h.errCh
}

// IsMisuse reports whether err is a lifecycle programming error.
func IsMisuse(err error) bool {
	return errors.Is(err, types.ErrInternalMisuse)
}

var _ Lifecycle = (*Host)(nil)
