package grpc

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/mr1hm/go-accident-alerts/internal/apperr"
	"github.com/mr1hm/go-accident-alerts/internal/models"
	"github.com/mr1hm/go-accident-alerts/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ReportReader is the read side of the report store.
type ReportReader interface {
	Get(ctx context.Context, id string) (models.AccidentReport, error)
	List(ctx context.Context, opts store.ListOptions) iter.Seq2[models.AccidentReport, error]
}

type Server struct {
	reports     ReportReader
	broadcaster *Broadcaster
	grpcServer  *grpc.Server
}

func NewServer(reports ReportReader, broadcaster *Broadcaster, opts ...grpc.ServerOption) *Server {
	s := &Server{
		reports:     reports,
		broadcaster: broadcaster,
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}
	serverOpts = append(serverOpts, opts...)
	s.grpcServer = grpc.NewServer(serverOpts...)

	RegisterAccidentServiceServer(s.grpcServer, s)
	grpc_prometheus.Register(s.grpcServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s.grpcServer, healthSrv)

	return s
}

func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	slog.Info("gRPC server listening", "addr", addr)
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Shutdown attempts a graceful stop, falling back to Stop when ctx expires.
func (s *Server) Shutdown(ctx context.Context) {
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-stopped
	case <-stopped:
	}
}

func (s *Server) GetReport(ctx context.Context, req *GetReportRequest) (*models.AccidentReport, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	r, err := s.reports.Get(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err, "failed to get report")
	}
	return &r, nil
}

func (s *Server) ListReports(ctx context.Context, req *ListReportsRequest) (*ListReportsResponse, error) {
	opts, err := listOptions(req)
	if err != nil {
		return nil, toStatus(err, "invalid request")
	}

	resp := &ListReportsResponse{Reports: make([]models.AccidentReport, 0)}
	for r, err := range s.reports.List(ctx, opts) {
		if err != nil {
			return nil, toStatus(err, "failed to list reports")
		}
		resp.Reports = append(resp.Reports, r)
	}
	return resp, nil
}

func listOptions(req *ListReportsRequest) (store.ListOptions, error) {
	opts := store.ListOptions{Limit: int(req.Limit)}
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}

	if req.Source != "" {
		src, ok := models.ParseSource(req.Source)
		if !ok {
			return opts, apperr.Validation("source", "unknown source "+req.Source)
		}
		opts.Source = &src
	}
	if req.Severity != "" {
		sev, ok := models.ParseSeverity(req.Severity)
		if !ok {
			return opts, apperr.Validation("severity", "unknown severity "+req.Severity)
		}
		opts.Severity = &sev
	}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			return opts, apperr.Validation("since", "must be RFC 3339")
		}
		opts.Since = &since
	}
	return opts, nil
}

func (s *Server) StreamAlerts(req *StreamAlertsRequest, stream AlertStream) error {
	if err := store.ValidateLocation(req.Latitude, req.Longitude); err != nil {
		return toStatus(err, "invalid request")
	}
	var filter models.AlertFilter
	if req.MinSeverity != "" {
		sev, ok := models.ParseSeverity(req.MinSeverity)
		if !ok {
			return status.Errorf(codes.InvalidArgument, "unknown severity %q", req.MinSeverity)
		}
		filter.MinSeverity = sev
	}
	if req.Latitude != nil {
		filter.Position = &models.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	id, ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	slog.Info("client subscribed to alert stream", "subscriber_id", id)

	for {
		select {
		case <-stream.Context().Done():
			slog.Info("client disconnected from alert stream", "subscriber_id", id)
			return nil
		case n, ok := <-ch:
			if !ok {
				return nil
			}

			if !filter.Match(n) {
				continue
			}

			if err := stream.Send(n); err != nil {
				slog.Error("failed to send alert to stream", "error", err, "subscriber_id", id)
				return err
			}
		}
	}
}

func toStatus(err error, msg string) error {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s: %v", msg, err)
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return status.Errorf(codes.Unavailable, "%s: %v", msg, err)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Errorf(codes.Internal, "%s: %v", msg, err)
	}
}
