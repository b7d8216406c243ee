package grpc

// Hand-written stand-in for buf-generated code for loanbook/v1/loanbook.proto.
// Messages travel with the JSON codec registered in json_codec.go.

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mkopo/loanbook/internal/application/dto"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "loanbook.v1.LoanbookService"

// Full method names, used by interceptors.
const (
	MethodOriginateLoan   = "/" + ServiceName + "/OriginateLoan"
	MethodGetLoanSchedule = "/" + ServiceName + "/GetLoanSchedule"
	MethodRecordPayment   = "/" + ServiceName + "/RecordPayment"
	MethodRevertPayment   = "/" + ServiceName + "/RevertPayment"
	MethodAllocatePayment = "/" + ServiceName + "/AllocatePayment"
	MethodReversePayment  = "/" + ServiceName + "/ReversePayment"
	MethodGetWallet       = "/" + ServiceName + "/GetWallet"
)

// LoanbookServiceServer is the server API for LoanbookService.
type LoanbookServiceServer interface {
	OriginateLoan(context.Context, *OriginateLoanRequest) (*dto.LoanResponse, error)
	GetLoanSchedule(context.Context, *GetLoanScheduleRequest) (*dto.LoanResponse, error)
	RecordPayment(context.Context, *RecordPaymentRequest) (*dto.RecordPaymentResponse, error)
	RevertPayment(context.Context, *RevertPaymentRequest) (*dto.RevertPaymentResponse, error)
	AllocatePayment(context.Context, *AmountRequest) (*dto.AllocationResponse, error)
	ReversePayment(context.Context, *AmountRequest) (*dto.ReversalResponse, error)
	GetWallet(context.Context, *GetWalletRequest) (*dto.WalletResponse, error)
	mustEmbedUnimplementedLoanbookServiceServer()
}

// UnimplementedLoanbookServiceServer provides forward-compatible default implementations.
type UnimplementedLoanbookServiceServer struct{}

func (UnimplementedLoanbookServiceServer) OriginateLoan(context.Context, *OriginateLoanRequest) (*dto.LoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method OriginateLoan not implemented")
}
func (UnimplementedLoanbookServiceServer) GetLoanSchedule(context.Context, *GetLoanScheduleRequest) (*dto.LoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetLoanSchedule not implemented")
}
func (UnimplementedLoanbookServiceServer) RecordPayment(context.Context, *RecordPaymentRequest) (*dto.RecordPaymentResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RecordPayment not implemented")
}
func (UnimplementedLoanbookServiceServer) RevertPayment(context.Context, *RevertPaymentRequest) (*dto.RevertPaymentResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RevertPayment not implemented")
}
func (UnimplementedLoanbookServiceServer) AllocatePayment(context.Context, *AmountRequest) (*dto.AllocationResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AllocatePayment not implemented")
}
func (UnimplementedLoanbookServiceServer) ReversePayment(context.Context, *AmountRequest) (*dto.ReversalResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ReversePayment not implemented")
}
func (UnimplementedLoanbookServiceServer) GetWallet(context.Context, *GetWalletRequest) (*dto.WalletResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetWallet not implemented")
}
func (UnimplementedLoanbookServiceServer) mustEmbedUnimplementedLoanbookServiceServer() {}

// RegisterLoanbookServiceServer registers srv with the gRPC server.
func RegisterLoanbookServiceServer(s grpclib.ServiceRegistrar, srv LoanbookServiceServer) {
	s.RegisterService(&_LoanbookService_serviceDesc, srv) //nolint:revive // gRPC handler registration
}

//nolint:revive // gRPC handler registration
var _LoanbookService_serviceDesc = grpclib.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LoanbookServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "OriginateLoan", Handler: unaryHandler(MethodOriginateLoan, LoanbookServiceServer.OriginateLoan)},
		{MethodName: "GetLoanSchedule", Handler: unaryHandler(MethodGetLoanSchedule, LoanbookServiceServer.GetLoanSchedule)},
		{MethodName: "RecordPayment", Handler: unaryHandler(MethodRecordPayment, LoanbookServiceServer.RecordPayment)},
		{MethodName: "RevertPayment", Handler: unaryHandler(MethodRevertPayment, LoanbookServiceServer.RevertPayment)},
		{MethodName: "AllocatePayment", Handler: unaryHandler(MethodAllocatePayment, LoanbookServiceServer.AllocatePayment)},
		{MethodName: "ReversePayment", Handler: unaryHandler(MethodReversePayment, LoanbookServiceServer.ReversePayment)},
		{MethodName: "GetWallet", Handler: unaryHandler(MethodGetWallet, LoanbookServiceServer.GetWallet)},
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "loanbook/v1/loanbook.proto",
}

// unaryHandler builds the per-method glue that generated code spells out by
// hand: decode the request, then call the method directly or through the
// interceptor chain.
func unaryHandler[Req, Resp any](
	fullMethod string,
	call func(LoanbookServiceServer, context.Context, *Req) (*Resp, error),
) grpclib.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LoanbookServiceServer), ctx, in)
		}
		info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LoanbookServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
