// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

package toolkit

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	perrors "powerexec/cli/internal/errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// GRPCMethod is the unary gateway method that accepts an XMLSERVICE request
// document and returns the reply document, both as StringValue messages.
const GRPCMethod = "/xmlservice.Toolkit/Call"

// GRPCTransport talks to a toolkit gateway over gRPC.
type GRPCTransport struct {
	conn     *grpc.ClientConn
	user     string
	password string
}

// GRPCOption configures DialGRPC.
type GRPCOption func(*grpcOptions)

type grpcOptions struct {
	insecure bool
	dialOpts []grpc.DialOption
}

// WithInsecure disables TLS. Only meant for loopback gateways and tests.
func WithInsecure() GRPCOption {
	return func(o *grpcOptions) { o.insecure = true }
}

// WithDialOptions appends raw gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) GRPCOption {
	return func(o *grpcOptions) { o.dialOpts = append(o.dialOpts, opts...) }
}

// DialGRPC connects to the gateway at addr. A missing port defaults to 443.
// The user and password are sent as call metadata on every request.
func DialGRPC(ctx context.Context, addr, user, password string, opts ...GRPCOption) (*GRPCTransport, error) {
	var o grpcOptions
	for _, opt := range opts {
		opt(&o)
	}

	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	target := addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		target = net.JoinHostPort(addr, "443")
	}

	creds := credentials.NewTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if o.insecure {
		creds = insecure.NewCredentials()
	}
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, o.dialOpts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, perrors.Wrap(perrors.TransportFailed, "dial toolkit gateway "+target, err)
	}
	return &GRPCTransport{conn: conn, user: user, password: password}, nil
}

// Call sends one request document and waits for the reply.
func (t *GRPCTransport) Call(ctx context.Context, xmlIn string) (string, error) {
	if t.conn == nil {
		return "", perrors.New(perrors.TransportFailed, "gRPC transport is closed")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
	}
	if t.user != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-ibmi-user", t.user, "x-ibmi-password", t.password)
	}

	out := &wrapperspb.StringValue{}
	if err := t.conn.Invoke(ctx, GRPCMethod, wrapperspb.String(xmlIn), out); err != nil {
		msg := err.Error()
		if st, ok := status.FromError(err); ok {
			msg = st.Code().String() + ": " + st.Message()
		}
		return "", perrors.Wrap(perrors.TransportFailed, "toolkit gateway call failed ("+msg+")", err)
	}
	return out.GetValue(), nil
}

// Close releases the underlying connection.
func (t *GRPCTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
