// Package stream pushes chart frames to remote renderers over a gRPC
// server-streaming call.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"pulsechart/internal/chartsvc"
	"pulsechart/internal/httpapi"
	"pulsechart/internal/metrics"
	"pulsechart/internal/viewport"
)

const (
	serviceName      = "pulsechart.v1.ChartStream"
	streamFramesPath = "/" + serviceName + "/StreamFrames"
)

// frameStreamer is the handler type of the ChartStream service.
type frameStreamer interface {
	StreamFrames(*wrapperspb.StringValue, grpc.ServerStreamingServer[structpb.Struct]) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*frameStreamer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamFrames",
			Handler:       streamFramesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "pulsechart/v1/chart_stream.proto",
}

func streamFramesHandler(srv any, stream grpc.ServerStream) error {
	req := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(frameStreamer).StreamFrames(req, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Struct]{ServerStream: stream})
}

// Server implements the StreamFrames gRPC endpoint.
type Server struct {
	charts  *chartsvc.Service
	metrics *metrics.Recorder
	log     *slog.Logger
	bufSize int
}

// NewServer creates a gRPC server backed by the chart registry.
func NewServer(charts *chartsvc.Service, rec *metrics.Recorder, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{charts: charts, metrics: rec, log: log.With("component", "stream"), bufSize: 256}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// StreamFrames sends the chart's current frame, then every frame published
// after it. The stream ends when the client disconnects or the chart is
// deleted.
func (s *Server) StreamFrames(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	id := req.GetValue()
	e, err := s.charts.Get(id)
	if err != nil {
		return status.Errorf(codes.NotFound, "chart %q not found", id)
	}

	// Subscribe before taking the snapshot so no change falls in between.
	subID, ch := e.Chart.Subscribe(s.bufSize)
	defer e.Chart.Unsubscribe(subID)

	s.metrics.StreamOpened()
	defer s.metrics.StreamClosed()
	s.log.Info("grpc client subscribed", "chart", id, "subID", subID)

	cur := e.Chart.Frame()
	if err := s.send(stream, id, cur); err != nil {
		return err
	}
	last := cur.Seq

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("grpc client disconnected", "chart", id, "subID", subID)
			return nil
		case f, ok := <-ch:
			if !ok {
				return nil
			}
			if f.Seq <= last {
				continue
			}
			last = f.Seq
			if err := s.send(stream, id, f); err != nil {
				return err
			}
		}
	}
}

func (s *Server) send(stream grpc.ServerStreamingServer[structpb.Struct], id string, f viewport.Frame) error {
	msg, err := FrameToStruct(httpapi.NewFrameJSON(id, f))
	if err != nil {
		return status.Errorf(codes.Internal, "encoding frame: %v", err)
	}
	return stream.Send(msg)
}

// FrameToStruct encodes a frame as a protobuf Struct with the same field
// names as the JSON API.
func FrameToStruct(f httpapi.FrameJSON) (*structpb.Struct, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshaling frame: %w", err)
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(b, msg); err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	return msg, nil
}

// StructToFrame decodes a Struct produced by FrameToStruct.
func StructToFrame(msg *structpb.Struct) (httpapi.FrameJSON, error) {
	var f httpapi.FrameJSON
	b, err := protojson.Marshal(msg)
	if err != nil {
		return f, fmt.Errorf("marshaling struct: %w", err)
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("decoding frame: %w", err)
	}
	return f, nil
}
