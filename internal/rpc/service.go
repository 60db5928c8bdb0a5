// Package rpc exposes the orchestrator as a gRPC service.
//
// Messages are google.protobuf.Struct values so the service needs no generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "wpcv.v1.Orchestrator"

const (
	methodNewConversation = "NewConversation"
	methodSubmit          = "Submit"
	methodDelete          = "DeleteConversation"
	methodListAgents      = "ListAgents"
	methodStatus          = "Status"
)

// OrchestratorService is the server-side contract of the service.
type OrchestratorService interface {
	NewConversation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DeleteConversation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListAgents(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Status(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(s OrchestratorService, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}

			service := srv.(OrchestratorService)
			if interceptor == nil {
				return call(service, ctx, in)
			}

			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(service, ctx, req.(*structpb.Struct))
			})
		},
	}
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OrchestratorService)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodNewConversation, OrchestratorService.NewConversation),
		unary(methodSubmit, OrchestratorService.Submit),
		unary(methodDelete, OrchestratorService.DeleteConversation),
		unary(methodListAgents, OrchestratorService.ListAgents),
		unary(methodStatus, OrchestratorService.Status),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wpcv/v1/orchestrator.proto",
}

func RegisterOrchestratorService(registrar grpc.ServiceRegistrar, service OrchestratorService) {
	registrar.RegisterService(&serviceDesc, service)
}
