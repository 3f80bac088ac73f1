package farcaster

import (
	"context"
	"crypto/tls"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// #region codec

// rawCodec passes pre-encoded protobuf bytes through unchanged, so messages
// built with protowire need no generated stubs.
type rawCodec struct{}

func (rawCodec) Name() string { return "proto" }

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	}
	return nil, fmt.Errorf("raw codec: cannot marshal %T", v)
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec: cannot unmarshal into %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

// #endregion codec

// #region hub-client

const submitMethod = "/HubService/SubmitMessage"

// HubGRPC submits messages to a hub's gRPC endpoint.
type HubGRPC struct {
	conn *grpc.ClientConn
}

// DialHub connects to a hub at addr.
func DialHub(addr string, useTLS bool, opts ...grpc.DialOption) (*HubGRPC, error) {
	creds := insecure.NewCredentials()
	if useTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &HubGRPC{conn: conn}, nil
}

// Submit sends msg and discards the echoed message.
func (h *HubGRPC) Submit(ctx context.Context, msg []byte) error {
	var out []byte
	if err := h.conn.Invoke(ctx, submitMethod, msg, &out, grpc.ForceCodec(rawCodec{})); err != nil {
		return fmt.Errorf("submit rpc: %w", err)
	}
	return nil
}

// Close shuts down the gRPC connection.
func (h *HubGRPC) Close() error {
	return h.conn.Close()
}

// #endregion hub-client
