package spray_controller

import (
	"context"
	"errors"
	"log"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
)

// GrpcHandler exposes a Commander over gRPC.
//
// A START refused by the interlock is a regular answer with success=false;
// only malformed requests become InvalidArgument errors.
type GrpcHandler struct {
	commander Commander
	logger    *log.Logger
}

var _ SprayControlServer = (*GrpcHandler)(nil)

func NewGrpcHandler(c Commander, logger *log.Logger) *GrpcHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &GrpcHandler{commander: c, logger: logger}
}

// ============== RPC: StartSpray ==============

func (h *GrpcHandler) StartSpray(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	opts, err := commandOptionsFrom(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return h.submit(ctx, entities.CommandStart, opts)
}

// ============== RPC: StopSpray ==============

func (h *GrpcHandler) StopSpray(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return h.submit(ctx, entities.CommandStop, CommandOptions{})
}

// ============== RPC: GetStatus ==============

func (h *GrpcHandler) GetStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(statusFields(h.commander.Status()))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// ============== Helpers ==============

func (h *GrpcHandler) submit(ctx context.Context, cmd entities.Command, opts CommandOptions) (*structpb.Struct, error) {
	res, err := h.commander.SubmitCommand(ctx, cmd, opts)
	if err != nil {
		if errors.Is(err, entities.ErrInvalidInput) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		h.logger.Printf("grpc: %s failed: %v", cmd, err)
		return nil, status.Error(codes.Internal, err.Error())
	}

	fields := map[string]any{
		"success":   res.Accepted,
		"command":   string(res.Command),
		"state":     string(res.State),
		"message":   res.Message(),
		"ticket_id": res.TicketID,
		"status":    statusFields(res.Status),
	}
	if res.Reason != "" {
		fields["reason"] = res.Reason
	}
	if res.SoilMoisture != nil {
		fields["soil_moisture"] = *res.SoilMoisture
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func statusFields(st entities.SprayStatus) map[string]any {
	m := map[string]any{
		"state":          string(st.State),
		"is_spraying":    st.IsSpraying(),
		"last_command":   string(st.LastCommand),
		"spray_duration": st.RequestedDuration,
		"sequence":       float64(st.Sequence),
		"updated_at":     st.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if st.StartedAt != nil {
		m["last_spray_time"] = st.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

// commandOptionsFrom reads the optional "duration" and "soil_moisture" numbers.
func commandOptionsFrom(req *structpb.Struct) (CommandOptions, error) {
	var opts CommandOptions
	if req == nil {
		return opts, nil
	}
	f := req.GetFields()
	if v, ok := f["duration"]; ok && !isNull(v) {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return opts, entities.NewInputError("duration", "duration must be a whole number of seconds")
		}
		d, err := entities.DurationSeconds(n.NumberValue)
		if err != nil {
			return opts, err
		}
		opts.Duration = &d
	}
	if v, ok := f["soil_moisture"]; ok && !isNull(v) {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return opts, entities.NewInputError("soil_moisture", "soil moisture must be a number")
		}
		m := n.NumberValue
		opts.SoilMoisture = &m
	}
	return opts, nil
}

func isNull(v *structpb.Value) bool {
	_, null := v.GetKind().(*structpb.Value_NullValue)
	return null
}
