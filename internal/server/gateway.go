package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"

	"github.com/ajaxzhan/fileserver/internal/fileservice"
	"github.com/ajaxzhan/fileserver/internal/logging"
	"github.com/ajaxzhan/fileserver/internal/sentryx"
	"github.com/ajaxzhan/fileserver/pkg/api"
	"github.com/ajaxzhan/fileserver/pkg/types"
)

// Gateway routes. Files are addressed with the "dir" and "name" query
// parameters.
const (
	RouteFiles      = "/v1/files"
	RouteProperties = "/v1/properties"
	RouteSnapshots  = "/v1/snapshots"
)

// GatewayError is the JSON body of a failed gateway request.
type GatewayError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// GatewayHandler builds the HTTP gateway. Requests are served directly by
// the file service with the HTTP remote address as the caller identity.
func (s *Server) GatewayHandler() (http.Handler, error) {
	mux := runtime.NewServeMux()

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodPut, RouteFiles, s.handlePutFile},
		{http.MethodGet, RouteFiles, s.handleGetFile},
		{http.MethodDelete, RouteFiles, s.handleDeleteFile},
		{http.MethodGet, RouteProperties, s.handleGetProperties},
		{http.MethodPost, RouteSnapshots, s.handleCreateSnapshot},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, s.wrapHTTP(r.handler)); err != nil {
			return nil, fmt.Errorf("failed to register %s %s: %w", r.method, r.pattern, err)
		}
	}
	return mux, nil
}

func (s *Server) handlePutFile(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	body := http.MaxBytesReader(w, r.Body, int64(s.maxMessageSize()))
	data, err := io.ReadAll(body)
	if err != nil {
		writeGatewayError(w, runtime.HTTPStatusFromCode(codes.InvalidArgument), "", fmt.Sprintf("failed to read body: %v", err))
		return
	}

	if err := s.svc.PutFile(gatewayContext(r), filePathFromQuery(r), data); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	data, err := s.svc.GetFile(gatewayContext(r), filePathFromQuery(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := s.svc.DeleteFile(gatewayContext(r), filePathFromQuery(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetProperties(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var opts fileservice.PropertiesOptions
	if v := r.URL.Query().Get("classify_video"); v != "" {
		classify, err := strconv.ParseBool(v)
		if err != nil {
			writeGatewayError(w, http.StatusBadRequest, "", "classify_video must be a boolean")
			return
		}
		opts.ClassifyVideo = classify
	}

	props, err := s.svc.GetProperties(gatewayContext(r), filePathFromQuery(r), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	fp, err := s.svc.CreateSnapshot(gatewayContext(r), filePathFromQuery(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fp)
}

// wrapHTTP applies rate limiting, panic recovery and request logging.
func (s *Server) wrapHTTP(h runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				logging.Error("Panic in gateway handler",
					logging.String("method", r.Method),
					logging.String("route", r.URL.Path),
					logging.String("panic", fmt.Sprint(p)),
				)
				sentryx.CaptureMessage(sentry.LevelFatal,
					"http panic method=%s path=%s panic=%v stack=%s",
					r.Method, r.URL.Path, p, string(debug.Stack()),
				)
				writeGatewayError(rec, http.StatusInternalServerError, "", "internal error")
			}

			logging.Info("HTTP request",
				logging.String("request_id", uuid.NewString()),
				logging.String("method", r.Method),
				logging.String("route", r.URL.Path),
				logging.Client(r.RemoteAddr),
				logging.Int("status", rec.status),
				logging.Duration("duration", time.Since(start)),
			)
		}()

		if s.limiter != nil && !s.limiter.Allow() {
			writeGatewayError(rec, runtime.HTTPStatusFromCode(codes.ResourceExhausted), "", "rate limit exceeded")
			return
		}
		h(rec, r, params)
	}
}

func (s *Server) maxMessageSize() int {
	return s.maxMsg
}

func gatewayContext(r *http.Request) context.Context {
	ctx := r.Context()
	if r.RemoteAddr != "" {
		ctx = types.WithClientID(ctx, types.ClientID(r.RemoteAddr))
	}
	return ctx
}

func filePathFromQuery(r *http.Request) types.FilePath {
	q := r.URL.Query()
	return types.FilePath{Directory: q.Get("dir"), Filename: q.Get("name")}
}

func writeServiceError(w http.ResponseWriter, err error) {
	st := api.StatusFromError(err)
	kind := ""
	if k := types.KindOf(err); k != types.KindUnknown {
		kind = k.String()
	}
	writeGatewayError(w, runtime.HTTPStatusFromCode(st.Code()), kind, st.Message())
}

func writeGatewayError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, GatewayError{Kind: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
