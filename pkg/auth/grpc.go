package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor authenticates unary calls from the
// "authorization" metadata. Any failure becomes codes.Unauthenticated with
// [UnauthorizedMessage]; the ClaimsSet is attached to the handler's
// context on success.
func UnaryServerInterceptor(validator TokenValidator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := authenticateGRPC(ctx, validator)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of
// [UnaryServerInterceptor].
func StreamServerInterceptor(validator TokenValidator) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := authenticateGRPC(ss.Context(), validator)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// UnaryClientInterceptor forwards the inbound bearer token, if the context
// carries one, as outgoing "authorization" metadata.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		return invoker(forwardBearerToGRPC(ctx), method, req, reply, cc, opts...)
	}
}

func authenticateGRPC(ctx context.Context, validator TokenValidator) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(HeaderAuthorization); len(values) > 0 {
			header = values[0]
		}
	}

	claims, err := validator.Validate(ctx, header)
	if err != nil {
		return ctx, status.Error(codes.Unauthenticated, UnauthorizedMessage)
	}

	ctx = ContextWithClaims(ctx, claims)
	return contextWithBearer(ctx, ExtractBearerToken(header)), nil
}

func forwardBearerToGRPC(ctx context.Context) context.Context {
	token, ok := BearerFromContext(ctx)
	if !ok {
		return ctx
	}
	if md, ok := metadata.FromOutgoingContext(ctx); ok && len(md.Get(HeaderAuthorization)) > 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, HeaderAuthorization, "Bearer "+token)
}

// wrappedServerStream overrides Context so stream handlers see the claims.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
