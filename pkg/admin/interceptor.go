package admin

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const TokenMetadataKey = "authorization"

// TokenInterceptor checks or attaches the shared admin bearer token. An
// empty token disables the check.
type TokenInterceptor struct {
	token string
}

func NewTokenInterceptor(token string) *TokenInterceptor {
	return &TokenInterceptor{token: token}
}

// UnaryServerInterceptor rejects unary calls without the token
func (ti *TokenInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if err := ti.authenticate(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor rejects streams without the token
func (ti *TokenInterceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := ti.authenticate(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

// UnaryClientInterceptor adds the token to outgoing unary calls
func (ti *TokenInterceptor) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(ti.attach(ctx), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor adds the token to outgoing streams
func (ti *TokenInterceptor) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(ti.attach(ctx), desc, cc, method, opts...)
	}
}

func (ti *TokenInterceptor) attach(ctx context.Context) context.Context {
	if ti.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, TokenMetadataKey, "Bearer "+ti.token)
}

func (ti *TokenInterceptor) authenticate(ctx context.Context) error {
	if ti.token == "" {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	for _, v := range md.Get(TokenMetadataKey) {
		got := strings.TrimPrefix(v, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(ti.token)) == 1 {
			return nil
		}
	}
	return status.Error(codes.Unauthenticated, "invalid admin token")
}

func loggingUnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("Admin call",
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.Stringer("code", status.Code(err)))
		return resp, err
	}
}
