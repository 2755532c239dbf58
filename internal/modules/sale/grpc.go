package sale

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/georgemunganga/pos-backend/internal/apperr"
	"github.com/georgemunganga/pos-backend/internal/platform/rpc"
)

const (
	grpcServiceName     = "pos.v1.SaleService"
	recordSaleMethod    = "/" + grpcServiceName + "/RecordSale"
	idempotencyMetadata = "idempotency-key"
)

// SaleServiceServer is the gRPC surface of the sale service.
type SaleServiceServer interface {
	RecordSale(ctx context.Context, req *RecordSaleRequest) (*Sale, error)
}

var saleServiceDesc = grpc.ServiceDesc{
	ServiceName: grpcServiceName,
	HandlerType: (*SaleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RecordSale", Handler: recordSaleHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func recordSaleHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RecordSaleRequest)
	if err := dec(in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request body: %s", status.Convert(err).Message())
	}
	if interceptor == nil {
		return srv.(SaleServiceServer).RecordSale(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: recordSaleMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SaleServiceServer).RecordSale(ctx, req.(*RecordSaleRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterGRPC exposes svc on s. Messages travel as JSON.
func RegisterGRPC(s grpc.ServiceRegistrar, svc Service) {
	s.RegisterService(&saleServiceDesc, &grpcServer{service: svc})
}

type grpcServer struct{ service Service }

func (g *grpcServer) RecordSale(ctx context.Context, req *RecordSaleRequest) (*Sale, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(idempotencyMetadata); len(v) > 0 {
			req.IdempotencyKey = v[0]
		}
	}
	sale, err := g.service.RecordSale(ctx, *req)
	if err != nil {
		return nil, status.Error(grpcCode(apperr.KindOf(err)), apperr.Message(err))
	}
	return sale, nil
}

func grpcCode(k apperr.Kind) codes.Code {
	switch k {
	case apperr.KindNotFound:
		return codes.NotFound
	case apperr.KindInvalidInput:
		return codes.InvalidArgument
	case apperr.KindInsufficientStock:
		return codes.FailedPrecondition
	case apperr.KindConflict:
		return codes.AlreadyExists
	case apperr.KindUnauthorized:
		return codes.Unauthenticated
	}
	return codes.Internal
}

// GRPCClient calls a remote SaleService.
type GRPCClient struct{ cc grpc.ClientConnInterface }

func NewGRPCClient(cc grpc.ClientConnInterface) *GRPCClient { return &GRPCClient{cc: cc} }

// RecordSale sends req, forwarding its idempotency key as metadata.
func (c *GRPCClient) RecordSale(ctx context.Context, req RecordSaleRequest, opts ...grpc.CallOption) (*Sale, error) {
	if req.IdempotencyKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, idempotencyMetadata, req.IdempotencyKey)
	}
	out := new(Sale)
	opts = append([]grpc.CallOption{rpc.CallOption()}, opts...)
	if err := c.cc.Invoke(ctx, recordSaleMethod, &req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
