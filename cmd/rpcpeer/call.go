package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/NethermindEth/rpcpeer/config"
	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/transport"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/spf13/cobra"
)

const (
	endpointF = "endpoint"
	notifyF   = "notify"

	defaultEndpoint = ""
	defaultNotify   = false

	endpointUsage = "Where to reach the remote peer: ws:// or wss:// for websockets, " +
		"http:// or https:// for HTTP, anything else is a unix socket path."
	notifyUsage = "Sends a notification and does not wait for a result."
)

var errNoEndpoint = errors.New("--endpoint is required")

func newCallCmd() *cobra.Command {
	callCmd := &cobra.Command{
		Use:   "call <method> [params]",
		Short: "Calls a method of a remote peer and prints the result.",
		Long: `Calls a method of a remote peer and prints the result.
params is a JSON array or object, e.g. rpcpeer call subtract '[42, 23]'.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			endpoint, err := cmd.Flags().GetString(endpointF)
			if err != nil {
				return err
			}
			notify, err := cmd.Flags().GetBool(notifyF)
			if err != nil {
				return err
			}

			var params json.RawMessage
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("params are not valid JSON: %s", args[1])
				}
				params = json.RawMessage(args[1])
			}

			log, err := utils.NewZapLogger(&cfg.LogLevel, cfg.Colour)
			if err != nil {
				return err
			}
			return call(cmd.Context(), cfg, endpoint, args[0], params, notify, cmd.OutOrStdout(), log)
		},
	}

	callCmd.Flags().String(endpointF, defaultEndpoint, endpointUsage)
	callCmd.Flags().Bool(notifyF, defaultNotify, notifyUsage)
	return callCmd
}

func call(ctx context.Context, cfg *config.Config, endpoint, method string, params json.RawMessage,
	notify bool, out io.Writer, log utils.SimpleLogger,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	peer := jsonrpc.NewPeer(nil, nil, log).
		WithTimeout(cfg.Timeout).
		WithIDGen(cfg.NewIDGenerator())
	closeConn, err := dial(ctx, cfg, endpoint, peer, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeConn(); closeErr != nil {
			log.Debugw("Failed to close connection", "err", closeErr)
		}
	}()

	if notify {
		return peer.Notice(ctx, method, params)
	}

	result, err := peer.Call(ctx, method, params)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err = json.Indent(&pretty, result, "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(out)
	return err
}

// dial connects peer to endpoint and returns how to close the connection.
func dial(ctx context.Context, cfg *config.Config, endpoint string, peer *jsonrpc.Peer,
	log utils.SimpleLogger,
) (func() error, error) {
	switch {
	case endpoint == "":
		return nil, errNoEndpoint
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		conn, err := transport.DialWebsocket(ctx, endpoint, &transport.WebsocketConnParams{
			ReadLimit:     int64(cfg.ReadLimit),
			WriteDuration: transport.DefaultWebsocketConnParams().WriteDuration,
			Concurrency:   cfg.Concurrency,
		}, log)
		if err != nil {
			return nil, err
		}
		peer.WithSender(conn)
		go serve(ctx, conn.Serve, peer, log)
		return conn.Close, nil
	case strings.HasPrefix(endpoint, "http://"), strings.HasPrefix(endpoint, "https://"):
		peer.WithSender(transport.NewHTTPSender(endpoint, http.DefaultClient, peer))
		return func() error { return nil }, nil
	default:
		conn, err := transport.DialIPC(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		stream := transport.NewStream(conn, conn, log).
			WithReadLimit(cfg.ReadLimit).
			WithConcurrency(cfg.Concurrency)
		peer.WithSender(stream)
		go serve(ctx, stream.Serve, peer, log)
		return conn.Close, nil
	}
}

func serve(ctx context.Context, serveFn func(context.Context, *jsonrpc.Peer) error, peer *jsonrpc.Peer,
	log utils.SimpleLogger,
) {
	if err := serveFn(ctx, peer); err != nil && ctx.Err() == nil {
		log.Debugw("Connection closed", "err", err)
	}
}
