package server

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a CoupEngine service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req any, resp any, opts ...grpc.CallOption) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return err
	}
	return fromStruct(out, resp)
}

func (c *Client) command(ctx context.Context, method string, req CommandRequest, opts ...grpc.CallOption) (ResultMessage, error) {
	var res ResultMessage
	err := c.invoke(ctx, method, req, &res, opts...)
	return res, err
}

// PerformAction declares an action.
func (c *Client) PerformAction(ctx context.Context, req CommandRequest, opts ...grpc.CallOption) (ResultMessage, error) {
	return c.command(ctx, MethodPerformAction, req, opts...)
}

// SubmitChallengeVote answers a challenge phase.
func (c *Client) SubmitChallengeVote(ctx context.Context, req CommandRequest, opts ...grpc.CallOption) (ResultMessage, error) {
	return c.command(ctx, MethodSubmitChallengeVote, req, opts...)
}

// SubmitBlockVote answers a block phase.
func (c *Client) SubmitBlockVote(ctx context.Context, req CommandRequest, opts ...grpc.CallOption) (ResultMessage, error) {
	return c.command(ctx, MethodSubmitBlockVote, req, opts...)
}

// SubmitBlockChallengeVote answers a block-challenge phase.
func (c *Client) SubmitBlockChallengeVote(ctx context.Context, req CommandRequest, opts ...grpc.CallOption) (ResultMessage, error) {
	return c.command(ctx, MethodSubmitBlockChallengeVote, req, opts...)
}

// SelectDiscard picks the card to lose.
func (c *Client) SelectDiscard(ctx context.Context, req CommandRequest, opts ...grpc.CallOption) (ResultMessage, error) {
	return c.command(ctx, MethodSelectDiscard, req, opts...)
}

// SelectExchangeKeep picks the cards to keep after an exchange.
func (c *Client) SelectExchangeKeep(ctx context.Context, req CommandRequest, opts ...grpc.CallOption) (ResultMessage, error) {
	return c.command(ctx, MethodSelectExchangeKeep, req, opts...)
}

// GetState fetches the current state for viewer.
func (c *Client) GetState(ctx context.Context, roomID, viewer string, opts ...grpc.CallOption) (StateMessage, error) {
	var msg StateMessage
	err := c.invoke(ctx, MethodGetState, viewRequest{RoomID: roomID, Viewer: viewer}, &msg, opts...)
	return msg, err
}

// StateStream receives WatchState messages.
type StateStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next state. It returns io.EOF when the server ends the stream.
func (s *StateStream) Recv() (StateMessage, error) {
	out := new(structpb.Struct)
	if err := s.stream.RecvMsg(out); err != nil {
		return StateMessage{}, err
	}
	var msg StateMessage
	err := fromStruct(out, &msg)
	return msg, err
}

// WatchState opens a state stream for viewer. Cancel ctx to stop it.
func (c *Client) WatchState(ctx context.Context, roomID, viewer string, opts ...grpc.CallOption) (*StateStream, error) {
	stream, err := c.cc.NewStream(ctx, &CoupEngineServiceDesc.Streams[0], fullMethod(MethodWatchState), opts...)
	if err != nil {
		return nil, err
	}
	in, err := toStruct(viewRequest{RoomID: roomID, Viewer: viewer})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &StateStream{stream: stream}, nil
}
