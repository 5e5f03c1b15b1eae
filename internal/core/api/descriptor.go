package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Fully qualified gRPC names. Messages are google.protobuf.Struct so the
// service needs no generated code; the field layout is documented on
// EvaluateRequest, EvaluateResponse and ReloadRequest.
const (
	EvaluatorServiceName = "opbuilder.evaluator.v1.Evaluator"
	EvaluateMethod       = "/" + EvaluatorServiceName + "/Evaluate"
	ReloadMethod         = "/" + EvaluatorServiceName + "/ReloadDefinitions"
)

// EvaluatorServer is the server side of the Evaluator service.
type EvaluatorServer interface {
	Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ReloadDefinitions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// EvaluatorServiceDesc describes the Evaluator service for grpc.Server.
var EvaluatorServiceDesc = grpc.ServiceDesc{
	ServiceName: EvaluatorServiceName,
	HandlerType: (*EvaluatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: unaryHandler(EvaluateMethod, EvaluatorServer.Evaluate)},
		{MethodName: "ReloadDefinitions", Handler: unaryHandler(ReloadMethod, EvaluatorServer.ReloadDefinitions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "opbuilder/evaluator/v1/evaluator.proto",
}

// RegisterEvaluatorServer registers srv on s.
func RegisterEvaluatorServer(s grpc.ServiceRegistrar, srv EvaluatorServer) {
	s.RegisterService(&EvaluatorServiceDesc, srv)
}

type structMethod func(EvaluatorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EvaluatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EvaluatorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// EvaluatorClient calls the Evaluator service.
type EvaluatorClient struct {
	cc grpc.ClientConnInterface
}

// NewEvaluatorClient wraps an established connection.
func NewEvaluatorClient(cc grpc.ClientConnInterface) *EvaluatorClient {
	return &EvaluatorClient{cc: cc}
}

// Evaluate sends an evaluation batch.
func (c *EvaluatorClient) Evaluate(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EvaluateMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ReloadDefinitions asks the server to reload its definition set.
func (c *EvaluatorClient) ReloadDefinitions(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ReloadMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
