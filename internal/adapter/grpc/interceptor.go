package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// methods callable without a token
var publicPrefixes = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

func isPublic(fullMethod string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(fullMethod, p) {
			return true
		}
	}
	return false
}

// authorize checks the authorization token from request metadata.
// If the token is missing or invalid, it returns status.Unauthenticated.
func authorize(ctx context.Context, validToken string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}

	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return status.Error(codes.Unauthenticated, "missing authorization header")
	}

	if strings.TrimPrefix(authHeaders[0], "Bearer ") != validToken {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	return nil
}

// AuthInterceptor returns a gRPC unary server interceptor that validates
// the authorization token from request metadata.
// Health and reflection calls are let through so health checks work without credentials.
func AuthInterceptor(validToken string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if isPublic(info.FullMethod) {
			return handler(ctx, req)
		}
		if err := authorize(ctx, validToken); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor is the streaming counterpart of AuthInterceptor
func StreamAuthInterceptor(validToken string) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if isPublic(info.FullMethod) {
			return handler(srv, ss)
		}
		if err := authorize(ss.Context(), validToken); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}
