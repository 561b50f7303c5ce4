package gatewaysvc

import (
	"context"

	gwpb "github.com/brocaar/chirpstack-api/go/v3/gw"
	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc"
)

const serviceName = "concentratord.Gateway"

// GatewayServer is the concentrator command and event API.
type GatewayServer interface {
	// SendDownlink translates and enqueues the first acceptable item of a frame.
	SendDownlink(context.Context, *gwpb.DownlinkFrame) (*gwpb.DownlinkTXAck, error)
	// StreamUplinks streams every uplink received after the call.
	StreamUplinks(*empty.Empty, Gateway_StreamUplinksServer) error
}

type Gateway_StreamUplinksServer interface {
	Send(*gwpb.UplinkFrame) error
	grpc.ServerStream
}

type gatewayStreamUplinksServer struct {
	grpc.ServerStream
}

func (x *gatewayStreamUplinksServer) Send(m *gwpb.UplinkFrame) error {
	return x.ServerStream.SendMsg(m)
}

func RegisterGatewayServer(s *grpc.Server, srv GatewayServer) {
	s.RegisterService(&gatewayServiceDesc, srv)
}

func sendDownlinkHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(gwpb.DownlinkFrame)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GatewayServer).SendDownlink(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/SendDownlink",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GatewayServer).SendDownlink(ctx, req.(*gwpb.DownlinkFrame))
	}
	return interceptor(ctx, in, info, handler)
}

func streamUplinksHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(empty.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(GatewayServer).StreamUplinks(m, &gatewayStreamUplinksServer{stream})
}

var gatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*GatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendDownlink",
			Handler:    sendDownlinkHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamUplinks",
			Handler:       streamUplinksHandler,
			ServerStreams: true,
		},
	},
	Metadata: "concentratord.proto",
}

// GatewayClient is the client side of GatewayServer.
type GatewayClient interface {
	SendDownlink(ctx context.Context, in *gwpb.DownlinkFrame, opts ...grpc.CallOption) (*gwpb.DownlinkTXAck, error)
	StreamUplinks(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (Gateway_StreamUplinksClient, error)
}

type Gateway_StreamUplinksClient interface {
	Recv() (*gwpb.UplinkFrame, error)
	grpc.ClientStream
}

type gatewayClient struct {
	cc grpc.ClientConnInterface
}

func NewGatewayClient(cc grpc.ClientConnInterface) GatewayClient {
	return &gatewayClient{cc}
}

func (c *gatewayClient) SendDownlink(ctx context.Context, in *gwpb.DownlinkFrame, opts ...grpc.CallOption) (*gwpb.DownlinkTXAck, error) {
	out := new(gwpb.DownlinkTXAck)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/SendDownlink", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *gatewayClient) StreamUplinks(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (Gateway_StreamUplinksClient, error) {
	stream, err := c.cc.NewStream(ctx, &gatewayServiceDesc.Streams[0], "/"+serviceName+"/StreamUplinks", opts...)
	if err != nil {
		return nil, err
	}
	x := &gatewayStreamUplinksClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type gatewayStreamUplinksClient struct {
	grpc.ClientStream
}

func (x *gatewayStreamUplinksClient) Recv() (*gwpb.UplinkFrame, error) {
	m := new(gwpb.UplinkFrame)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
