package spray_controller

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// RemoteSprayer is a SprayControl client bound to its own connection.
type RemoteSprayer struct {
	*SprayControlClient
	conn *grpc.ClientConn
}

// DialSprayer connects to a SprayControl endpoint such as "sprayer:50051".
// Extra dial options are appended after the insecure transport credentials.
func DialSprayer(ctx context.Context, addr string, extra ...grpc.DialOption) (*RemoteSprayer, error) {
	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithReturnConnectionError(),
	}, extra...)
	// Dial bloccante: fallisce entro il timeout se il server non risponde
	conn, err := grpc.DialContext(dctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial sprayer (%s): %w", addr, err)
	}
	return &RemoteSprayer{SprayControlClient: NewSprayControlClient(conn), conn: conn}, nil
}

func (r *RemoteSprayer) Close() error {
	if r == nil || r.conn == nil {
		return nil
	}
	return r.conn.Close()
}
