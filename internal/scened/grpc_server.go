package scened

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/GoSim-25-26J-441/scene-synth/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SceneGRPCServer implements SceneServiceServer on top of a RunExecutor.
type SceneGRPCServer struct {
	store    *RunStore
	Executor *RunExecutor
}

func NewSceneGRPCServer(executor *RunExecutor) *SceneGRPCServer {
	return &SceneGRPCServer{
		store:    executor.Store(),
		Executor: executor,
	}
}

// CreateRun expects {run_id, input: {config_yaml, catalog_yaml, scene_json, mode, ...}}
func (s *SceneGRPCServer) CreateRun(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body struct {
		RunID string   `json:"run_id"`
		Input RunInput `json:"input"`
	}
	if err := fromStruct(req, &body); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	rec, err := s.Executor.Create(body.RunID, body.Input)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput), strings.Contains(err.Error(), "cannot contain"):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case strings.Contains(err.Error(), "already exists"):
			return nil, status.Error(codes.AlreadyExists, err.Error())
		default:
			return nil, status.Error(codes.Internal, err.Error())
		}
	}

	logger.Info("run created", "run_id", rec.Run.ID)
	return toStruct(map[string]any{"run": rec.Run})
}

func (s *SceneGRPCServer) StartRun(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, ErrRunIDMissing.Error())
	}
	updated, err := s.Executor.Start(req.GetValue())
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("run started (gRPC)", "run_id", req.GetValue())
	return toStruct(map[string]any{"run": updated.Run})
}

// StepRun expects {run_id, n}; n defaults to 1
func (s *SceneGRPCServer) StepRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body struct {
		RunID string `json:"run_id"`
		N     int    `json:"n"`
	}
	if err := fromStruct(req, &body); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if body.RunID == "" {
		return nil, status.Error(codes.InvalidArgument, ErrRunIDMissing.Error())
	}
	if body.N == 0 {
		body.N = 1
	}
	if body.N < 0 {
		return nil, status.Error(codes.InvalidArgument, "n must be a positive integer")
	}

	progress, err := s.Executor.Step(ctx, body.RunID, body.N)
	if err != nil {
		return nil, grpcError(err)
	}
	rec, _ := s.store.Get(body.RunID)
	return toStruct(map[string]any{"run": rec.Run, "progress": progress})
}

func (s *SceneGRPCServer) StopRun(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, ErrRunIDMissing.Error())
	}
	updated, err := s.Executor.Stop(req.GetValue())
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"run": updated.Run})
}

func (s *SceneGRPCServer) GetRun(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, ErrRunIDMissing.Error())
	}
	rec, ok := s.store.Get(req.GetValue())
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	resp := map[string]any{"run": rec.Run}
	if p, err := s.Executor.Progress(req.GetValue()); err == nil {
		resp["progress"] = p
	}
	return toStruct(resp)
}

func (s *SceneGRPCServer) ListRuns(_ context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	limit := int(req.GetValue())
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	recs := s.store.List(limit, "")
	runs := make([]Run, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, rec.Run)
	}
	return toStruct(map[string]any{"runs": runs, "count": len(runs)})
}

// WatchRun streams step and status events until the run finishes or the client goes away.
func (s *SceneGRPCServer) WatchRun(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if req.GetValue() == "" {
		return status.Error(codes.InvalidArgument, ErrRunIDMissing.Error())
	}
	events, cancel, err := s.Executor.Subscribe(req.GetValue())
	if err != nil {
		return grpcError(err)
	}
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			msg, err := toStruct(ev)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrRunIDMissing), errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrRunTerminal), errors.Is(err, ErrWrongMode), errors.Is(err, ErrRunNotStarted):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct converts any JSON-encodable value to a protobuf Struct
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// fromStruct decodes a protobuf Struct into a JSON-tagged Go value
func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return errors.New("request body is required")
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
