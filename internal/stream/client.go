package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"pulsechart/internal/httpapi"
)

// Dial opens an insecure client connection to a ChartStream server.
func Dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return conn, nil
}

// Client watches chart frames from a ChartStream server.
type Client struct {
	conn grpc.ClientConnInterface
	log  *slog.Logger
}

// NewClient creates a client over an existing connection.
func NewClient(conn grpc.ClientConnInterface, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{conn: conn, log: log}
}

// Watch streams frames of chart id into fn. It blocks until ctx is
// cancelled, the server ends the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, id string, fn func(httpapi.FrameJSON) error) error {
	cs, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], streamFramesPath)
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	stream := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Struct]{ClientStream: cs}
	if err := stream.SendMsg(wrapperspb.String(id)); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("closing send: %w", err)
	}

	c.log.Info("connected to frame stream", "chart", id)

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receiving frame: %w", err)
		}
		f, err := StructToFrame(msg)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
}
