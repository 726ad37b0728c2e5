// Package server exposes the file service over gRPC and an optional HTTP
// gateway, and hosts it behind a start/stop lifecycle.
package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/ajaxzhan/fileserver/internal/fileservice"
	"github.com/ajaxzhan/fileserver/internal/logging"
	"github.com/ajaxzhan/fileserver/pkg/api"
)

// Config holds server configuration.
type Config struct {
	GRPCAddr string
	HTTPAddr string // Optional REST gateway address

	// MaxMessageSize bounds request and response sizes in bytes. Zero
	// derives it from the file service's transfer limit.
	MaxMessageSize int

	// RequestsPerSecond enables a token bucket shared by gRPC and HTTP
	// requests. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	// Identity defaults to PeerIdentity.
	Identity IdentityExtractor
}

// Server represents the gRPC server.
type Server struct {
	config      *Config
	grpcServer  *grpc.Server
	httpServer  *http.Server
	fileService *FileServiceServer
	svc         *fileservice.Service
	limiter     *rate.Limiter
	maxMsg      int
	mu          sync.Mutex
	stopped     bool
}

// New creates a new gRPC server.
func New(cfg *Config, svc *fileservice.Service) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if svc == nil {
		return nil, errors.New("file service is required")
	}

	identity := cfg.Identity
	if identity == nil {
		identity = PeerIdentity{}
	}
	maxMsg := cfg.MaxMessageSize
	if maxMsg <= 0 {
		maxMsg = api.MessageSizeFor(svc.MaxTransferSize())
	} else if limit := api.MaxTransferFor(maxMsg); svc.MaxTransferSize() > limit {
		return nil, fmt.Errorf("max message size %d carries files up to %d bytes, below the transfer limit %d",
			maxMsg, limit, svc.MaxTransferSize())
	}

	var limiter *rate.Limiter
	interceptors := []grpc.UnaryServerInterceptor{recoveryInterceptor()}
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
		interceptors = append(interceptors, rateLimitInterceptor(limiter))
	}
	interceptors = append(interceptors, identityInterceptor(identity), loggingInterceptor())

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsg),
		grpc.MaxSendMsgSize(maxMsg),
		grpc.ChainUnaryInterceptor(interceptors...),
	)
	fileSvc := NewFileServiceServer(svc)
	api.RegisterFileServiceServer(grpcServer, fileSvc)

	return &Server{
		config:      cfg,
		grpcServer:  grpcServer,
		fileService: fileSvc,
		svc:         svc,
		limiter:     limiter,
		maxMsg:      maxMsg,
	}, nil
}

// Serve accepts gRPC connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// ServeGateway serves the HTTP gateway on lis until Stop is called.
func (s *Server) ServeGateway(lis net.Listener) error {
	handler, err := s.GatewayHandler()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return lis.Close()
	}
	s.httpServer = &http.Server{
		Handler:  handler,
		ErrorLog: zap.NewStdLog(logging.L().Named("gateway")),
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	if err := httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.httpServer != nil {
		s.httpServer.Close()
	}
	s.grpcServer.GracefulStop()
}
