// Command coupctl drives a coup server over gRPC from the terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/thraizz/coup-server-go/internal/server"
)

const usage = `usage: coupctl [flags] <command> [args]

commands:
  state   <room> [viewer]                 print the room state
  watch   <room> [viewer]                 stream state updates
  act     <room> <player> <action> [target]
  challenge|block|block-challenge <room> <player> <phase> yes|no
  discard <room> <player> <phase> <card>
  keep    <room> <player> <phase> <card>...
`

func main() {
	addr := flag.String("addr", "localhost:17171", "gRPC server address")
	timeout := flag.Duration("timeout", 10*time.Second, "deadline for unary calls")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fail(err)
	}
	defer conn.Close()
	client := server.NewClient(conn)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := flag.Args()
	if args[0] == "watch" {
		if err := watch(ctx, client, args[1:]); err != nil {
			fail(err)
		}
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	out, err := run(callCtx, client, args[0], args[1:])
	if err != nil {
		fail(err)
	}
	printJSON(out)
}

func run(ctx context.Context, client *server.Client, cmd string, args []string) (any, error) {
	switch cmd {
	case "state":
		return client.GetState(ctx, args[0], optional(args, 1))
	case "act":
		if len(args) < 3 {
			return nil, errUsage
		}
		return client.PerformAction(ctx, server.CommandRequest{
			RoomID: args[0], Player: args[1], Action: args[2], Target: optional(args, 3),
		})
	case "challenge", "block", "block-challenge":
		if len(args) != 4 {
			return nil, errUsage
		}
		req := server.CommandRequest{RoomID: args[0], Player: args[1], PhaseID: args[2], Yes: args[3] == "yes"}
		switch cmd {
		case "challenge":
			return client.SubmitChallengeVote(ctx, req)
		case "block":
			return client.SubmitBlockVote(ctx, req)
		default:
			return client.SubmitBlockChallengeVote(ctx, req)
		}
	case "discard":
		if len(args) != 4 {
			return nil, errUsage
		}
		return client.SelectDiscard(ctx, server.CommandRequest{RoomID: args[0], Player: args[1], PhaseID: args[2], Card: args[3]})
	case "keep":
		if len(args) < 4 {
			return nil, errUsage
		}
		return client.SelectExchangeKeep(ctx, server.CommandRequest{RoomID: args[0], Player: args[1], PhaseID: args[2], Keep: args[3:]})
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

var errUsage = errors.New("wrong number of arguments, see -h")

func watch(ctx context.Context, client *server.Client, args []string) error {
	stream, err := client.WatchState(ctx, args[0], optional(args, 1))
	if err != nil {
		return err
	}
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		for _, evt := range msg.Events {
			fmt.Printf("v%d %-20s %s\n", msg.Version, evt.Type, strings.TrimSpace(evt.Description))
		}
		if msg.State.Finished {
			fmt.Printf("game over, %s wins\n", msg.State.Winner)
			return nil
		}
	}
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail(err)
	}
}

func fail(err error) {
	if st, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "error: %s: %s\n", st.Code(), st.Message())
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}
