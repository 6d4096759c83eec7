package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

const (
	serviceName = "accidentalert.v1.AccidentService"

	getReportMethod    = "/" + serviceName + "/GetReport"
	listReportsMethod  = "/" + serviceName + "/ListReports"
	streamAlertsMethod = "/" + serviceName + "/StreamAlerts"
)

type GetReportRequest struct {
	ID string `json:"id"`
}

type ListReportsRequest struct {
	Source   string `json:"source,omitempty"`
	Severity string `json:"severity,omitempty"`
	Since    string `json:"since,omitempty"` // RFC 3339
	Limit    int32  `json:"limit,omitempty"`
}

type ListReportsResponse struct {
	Reports []models.AccidentReport `json:"reports"`
}

// StreamAlertsRequest optionally narrows the stream to notifications whose
// broadcast radius covers the subscriber position.
type StreamAlertsRequest struct {
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	MinSeverity string   `json:"min_severity,omitempty"`
}

type AccidentServiceServer interface {
	GetReport(context.Context, *GetReportRequest) (*models.AccidentReport, error)
	ListReports(context.Context, *ListReportsRequest) (*ListReportsResponse, error)
	StreamAlerts(*StreamAlertsRequest, AlertStream) error
}

type AlertStream interface {
	Send(*models.ChannelNotification) error
	grpc.ServerStream
}

type alertStream struct {
	grpc.ServerStream
}

func (x *alertStream) Send(n *models.ChannelNotification) error {
	return x.ServerStream.SendMsg(n)
}

func RegisterAccidentServiceServer(s grpc.ServiceRegistrar, srv AccidentServiceServer) {
	s.RegisterService(&AccidentServiceDesc, srv)
}

var AccidentServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AccidentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetReport", Handler: getReportHandler},
		{MethodName: "ListReports", Handler: listReportsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamAlerts", Handler: streamAlertsHandler, ServerStreams: true},
	},
	Metadata: "accidentalert/v1/accident.json",
}

func getReportHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetReportRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AccidentServiceServer).GetReport(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getReportMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AccidentServiceServer).GetReport(ctx, req.(*GetReportRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listReportsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListReportsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AccidentServiceServer).ListReports(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listReportsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AccidentServiceServer).ListReports(ctx, req.(*ListReportsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func streamAlertsHandler(srv any, stream grpc.ServerStream) error {
	in := new(StreamAlertsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(AccidentServiceServer).StreamAlerts(in, &alertStream{stream})
}

// Client speaks the JSON codec over any client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}

func (c *Client) GetReport(ctx context.Context, in *GetReportRequest, opts ...grpc.CallOption) (*models.AccidentReport, error) {
	out := new(models.AccidentReport)
	if err := c.cc.Invoke(ctx, getReportMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListReports(ctx context.Context, in *ListReportsRequest, opts ...grpc.CallOption) (*ListReportsResponse, error) {
	out := new(ListReportsResponse)
	if err := c.cc.Invoke(ctx, listReportsMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

type AlertStreamClient interface {
	Recv() (*models.ChannelNotification, error)
	grpc.ClientStream
}

type alertStreamClient struct {
	grpc.ClientStream
}

func (x *alertStreamClient) Recv() (*models.ChannelNotification, error) {
	m := new(models.ChannelNotification)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *Client) StreamAlerts(ctx context.Context, in *StreamAlertsRequest, opts ...grpc.CallOption) (AlertStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &AccidentServiceDesc.Streams[0], streamAlertsMethod, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &alertStreamClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
