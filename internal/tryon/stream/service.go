package stream

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/tryon/internal/tryon/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tryon.v1.FrameStream"

const subscribeMethod = "/" + ServiceName + "/Subscribe"

// FrameStreamServer is the server side of the frame stream.
type FrameStreamServer interface {
	Subscribe(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// ServiceDesc describes the frame stream for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FrameStreamServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "tryon/v1/frame_stream.proto",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(emptypb.Empty)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(FrameStreamServer).Subscribe(req, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// Register adds the frame stream served by srv to s.
func Register(s grpc.ServiceRegistrar, srv FrameStreamServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Subscribe streams every frame observed after the call until the client
// goes away or the server stops.
func (p *Publisher) Subscribe(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	c := p.addClient()
	defer p.removeClient(c.id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-c.frames:
			msg, err := ToStruct(f)
			if err != nil {
				return status.Errorf(codes.Internal, "frame %d: %v", f.Index, err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// ToStruct converts a frame into its wire form.
func ToStruct(f *pipeline.Frame) (*structpb.Struct, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// FromStruct converts a streamed message back into a frame.
func FromStruct(s *structpb.Struct) (*pipeline.Frame, error) {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, err
	}
	var f pipeline.Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to decode streamed frame: %w", err)
	}
	return &f, nil
}

// Subscription is the client side of one frame stream.
type Subscription struct {
	stream grpc.ClientStream
}

// Subscribe opens a frame stream on cc. Cancel ctx to end it.
func Subscribe(ctx context.Context, cc grpc.ClientConnInterface) (*Subscription, error) {
	cs, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], subscribeMethod)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &Subscription{stream: cs}, nil
}

// Recv blocks for the next frame.
func (s *Subscription) Recv() (*pipeline.Frame, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return FromStruct(msg)
}
