package server

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/thraizz/coup-server-go/internal/room"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "coup.v1.CoupEngine"

// RPC method names.
const (
	MethodPerformAction            = "PerformAction"
	MethodSubmitChallengeVote      = "SubmitChallengeVote"
	MethodSubmitBlockVote          = "SubmitBlockVote"
	MethodSubmitBlockChallengeVote = "SubmitBlockChallengeVote"
	MethodSelectDiscard            = "SelectDiscard"
	MethodSelectExchangeKeep       = "SelectExchangeKeep"
	MethodGetState                 = "GetState"
	MethodWatchState               = "WatchState"
)

// CoupEngineServer is the gRPC surface of the room service. Requests and
// responses are JSON-shaped google.protobuf.Struct messages using the same
// field names as the WebSocket protocol.
type CoupEngineServer interface {
	PerformAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitChallengeVote(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitBlockVote(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitBlockChallengeVote(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SelectDiscard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SelectExchangeKeep(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchState(*structpb.Struct, grpc.ServerStream) error
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type unaryCall func(CoupEngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CoupEngineServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CoupEngineServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchStateHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CoupEngineServer).WatchState(in, stream)
}

// CoupEngineServiceDesc describes the service for grpc.Server.RegisterService.
var CoupEngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoupEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodPerformAction, CoupEngineServer.PerformAction),
		unaryMethod(MethodSubmitChallengeVote, CoupEngineServer.SubmitChallengeVote),
		unaryMethod(MethodSubmitBlockVote, CoupEngineServer.SubmitBlockVote),
		unaryMethod(MethodSubmitBlockChallengeVote, CoupEngineServer.SubmitBlockChallengeVote),
		unaryMethod(MethodSelectDiscard, CoupEngineServer.SelectDiscard),
		unaryMethod(MethodSelectExchangeKeep, CoupEngineServer.SelectExchangeKeep),
		unaryMethod(MethodGetState, CoupEngineServer.GetState),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatchState,
			Handler:       watchStateHandler,
			ServerStreams: true,
		},
	},
	Metadata: "coup/v1/engine.proto",
}

// RegisterCoupEngineServer registers srv on s.
func RegisterCoupEngineServer(s grpc.ServiceRegistrar, srv CoupEngineServer) {
	s.RegisterService(&CoupEngineServiceDesc, srv)
}

// coupServer implements CoupEngineServer over a Service.
type coupServer struct {
	service *Service
	logger  *zap.Logger
}

// NewCoupServer creates the gRPC service implementation.
func NewCoupServer(service *Service, logger *zap.Logger) CoupEngineServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &coupServer{service: service, logger: logger}
}

func (s *coupServer) execute(ctx context.Context, kind room.CommandKind, in *structpb.Struct) (*structpb.Struct, error) {
	var req CommandRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	res, err := s.service.Execute(ctx, kind, req)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := toStruct(resultMessage("", res))
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

func (s *coupServer) PerformAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.execute(ctx, room.CommandPerformAction, in)
}

func (s *coupServer) SubmitChallengeVote(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.execute(ctx, room.CommandChallengeVote, in)
}

func (s *coupServer) SubmitBlockVote(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.execute(ctx, room.CommandBlockVote, in)
}

func (s *coupServer) SubmitBlockChallengeVote(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.execute(ctx, room.CommandBlockChallengeVote, in)
}

func (s *coupServer) SelectDiscard(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.execute(ctx, room.CommandDiscard, in)
}

func (s *coupServer) SelectExchangeKeep(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.execute(ctx, room.CommandExchangeKeep, in)
}

type viewRequest struct {
	RoomID string `json:"roomId"`
	Viewer string `json:"viewer"`
}

// GetState returns the committed state as the viewer sees it.
func (s *coupServer) GetState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req viewRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	r, err := s.service.Room(ctx, req.RoomID)
	if err != nil {
		return nil, toStatus(err)
	}
	view, version := r.Snapshot(req.Viewer)
	out, err := toStruct(StateMessage{Type: MessageState, RoomID: req.RoomID, Version: version, State: view})
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

// WatchState streams every committed state of a room until the client
// goes away or the room closes.
func (s *coupServer) WatchState(in *structpb.Struct, stream grpc.ServerStream) error {
	var req viewRequest
	if err := fromStruct(in, &req); err != nil {
		return toStatus(err)
	}
	ctx := stream.Context()
	r, err := s.service.Room(ctx, req.RoomID)
	if err != nil {
		return toStatus(err)
	}

	updates, cancel := r.Subscribe(req.Viewer)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				if r.Finished() {
					return nil
				}
				return status.Error(codes.Unavailable, "subscription ended")
			}
			out, err := toStruct(stateMessage(req.RoomID, req.Viewer, u))
			if err != nil {
				return toStatus(err)
			}
			if err := stream.SendMsg(out); err != nil {
				s.logger.Debug("watch stream send failed",
					zap.String("room_id", req.RoomID),
					zap.String("viewer", req.Viewer),
					zap.Error(err),
				)
				return err
			}
		}
	}
}

// toStruct converts a JSON-tagged value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return out, nil
}

// fromStruct decodes a Struct into a JSON-tagged value.
func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return fmt.Errorf("%w: empty request", ErrBadRequest)
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
