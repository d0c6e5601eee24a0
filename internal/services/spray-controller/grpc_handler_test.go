package spray_controller

import (
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sprayer_project/internal/services/sensorstore"
)

func startGrpc(t *testing.T, moisture float64) (*SprayControlClient, *Controller) {
	t.Helper()

	store := sensorstore.New(sensorstore.WithInitial(entities.SensorReading{SoilMoisture: moisture}))
	ctrl := NewController(store, WithLogger(log.New(io.Discard, "", 0)))

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterSprayControlServer(srv, NewGrpcHandler(ctrl, log.New(io.Discard, "", 0)))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewSprayControlClient(conn), ctrl
}

func rpcCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGrpcStartSprayAccepted(t *testing.T) {
	client, ctrl := startGrpc(t, 55)

	out, err := client.StartSpray(rpcCtx(t), mustStruct(t, map[string]any{"duration": 8}))
	require.NoError(t, err)

	f := out.AsMap()
	assert.Equal(t, true, f["success"])
	assert.Equal(t, "spraying", f["state"])
	assert.Equal(t, "Spray started for 8 seconds", f["message"])
	assert.NotEmpty(t, f["ticket_id"])
	assert.Equal(t, 55.0, f["soil_moisture"])

	st := f["status"].(map[string]any)
	assert.Equal(t, true, st["is_spraying"])
	assert.Equal(t, 8.0, st["spray_duration"])
	assert.Contains(t, st, "last_spray_time")

	assert.Equal(t, entities.StateSpraying, ctrl.Status().State)
}

func TestGrpcStartSprayRejectedIsNotAnError(t *testing.T) {
	client, ctrl := startGrpc(t, 55)

	out, err := client.StartSpray(rpcCtx(t), mustStruct(t, map[string]any{"soil_moisture": 75}))
	require.NoError(t, err)

	f := out.AsMap()
	assert.Equal(t, false, f["success"])
	assert.Equal(t, "rejected", f["state"])
	assert.Contains(t, f["reason"], "outside safe range")
	assert.Contains(t, f["message"], "Cannot spray.")

	assert.Equal(t, entities.StateIdle, ctrl.Status().State)
	assert.Equal(t, entities.CommandRejected, ctrl.Status().LastCommand)
}

func TestGrpcInvalidArguments(t *testing.T) {
	client, ctrl := startGrpc(t, 55)

	bad := []map[string]any{
		{"duration": 0},
		{"duration": -3},
		{"duration": 2.5},
		{"duration": 1e20},
		{"duration": -1e20},
		{"duration": "ten"},
		{"soil_moisture": "wet"},
	}
	for _, req := range bad {
		_, err := client.StartSpray(rpcCtx(t), mustStruct(t, req))
		require.Errorf(t, err, "request %v", req)
		assert.Equalf(t, codes.InvalidArgument, status.Code(err), "request %v", req)
	}
	assert.Equal(t, uint64(0), ctrl.Status().Sequence, "invalid input must not touch state")
}

func TestGrpcStopAndStatus(t *testing.T) {
	client, _ := startGrpc(t, 55)

	_, err := client.StartSpray(rpcCtx(t), nil)
	require.NoError(t, err)

	out, err := client.StopSpray(rpcCtx(t), mustStruct(t, map[string]any{"duration": 0}))
	require.NoError(t, err)
	assert.Equal(t, true, out.AsMap()["success"])
	assert.Equal(t, "Spray stopped", out.AsMap()["message"])

	st, err := client.GetStatus(rpcCtx(t), nil)
	require.NoError(t, err)
	f := st.AsMap()
	assert.Equal(t, "idle", f["state"])
	assert.Equal(t, false, f["is_spraying"])
	assert.Equal(t, "STOP", f["last_command"])
	assert.Equal(t, 2.0, f["sequence"])
	assert.NotContains(t, f, "last_spray_time")
}

func TestDialSprayer(t *testing.T) {
	store := sensorstore.New()
	ctrl := NewController(store, WithLogger(log.New(io.Discard, "", 0)))

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterSprayControlServer(srv, NewGrpcHandler(ctrl, log.New(io.Discard, "", 0)))
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	remote, err := DialSprayer(context.Background(), "passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	defer remote.Close()

	out, err := remote.GetStatus(rpcCtx(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "idle", out.AsMap()["state"])
}
