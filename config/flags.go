package config

import (
	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/transport"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/spf13/pflag"
)

const (
	logLevelF    = "log-level"
	colourF      = "colour"
	timeoutF     = "timeout"
	idGeneratorF = "id-generator"
	readLimitF   = "read-limit"
	concurrencyF = "concurrency"
	stdioF       = "stdio"
	httpAddrF    = "http-addr"
	wsAddrF      = "ws-addr"
	ipcPathF     = "ipc-path"
	metricsAddrF = "metrics-addr"
	corsOriginsF = "cors-origins"

	defaultLogLevel    = utils.INFO
	defaultColour      = true
	defaultTimeout     = jsonrpc.DefaultTimeout
	defaultIDGenerator = IDGeneratorSequential
	defaultReadLimit   = transport.DefaultReadLimit
	defaultConcurrency = transport.DefaultConcurrency
	defaultStdio       = false
	defaultHTTPAddr    = ""
	defaultWSAddr      = ""
	defaultIPCPath     = ""
	defaultMetricsAddr = ""

	logLevelUsage = "Options: trace, debug, info, warn, error."
	colourUsage   = "Uses --colour=false command to disable colourized outputs (ANSI Escape Codes)."
	timeoutUsage  = "How long an outbound call waits for its response. " +
		"0 or less waits until the call's context is done."
	idGeneratorUsage = `Ids given to outbound calls. Options:
sequential = 1, 2, 3, ... wrapping after 2^31-1
uuid = random uuid strings`
	readLimitUsage   = "Largest inbound message accepted, in bytes."
	concurrencyUsage = "Inbound messages of one connection processed at the same time."
	stdioUsage       = "Serves newline-delimited JSON-RPC on stdin and stdout."
	httpAddrUsage    = "The address on which the HTTP server listens for requests, e.g. localhost:6060. " +
		"Warning: this exposes the peer to external requests and potentially DoS attacks."
	wsAddrUsage      = "The address on which the websocket server listens for connections, e.g. localhost:6061."
	ipcPathUsage     = "The unix socket path on which IPC connections are accepted."
	metricsAddrUsage = "The address on which prometheus metrics and the log level endpoint are served."
	corsOriginsUsage = "Origins allowed to reach the HTTP and websocket servers from a browser."
)

// RegisterFlags adds one flag per Config field, carrying its default.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.Var(utils.NewLogLevel(defaultLogLevel), logLevelF, logLevelUsage)
	flags.Bool(colourF, defaultColour, colourUsage)
	flags.Duration(timeoutF, defaultTimeout, timeoutUsage)
	flags.String(idGeneratorF, defaultIDGenerator, idGeneratorUsage)
	flags.Int(readLimitF, defaultReadLimit, readLimitUsage)
	flags.Int(concurrencyF, defaultConcurrency, concurrencyUsage)
	flags.Bool(stdioF, defaultStdio, stdioUsage)
	flags.String(httpAddrF, defaultHTTPAddr, httpAddrUsage)
	flags.String(wsAddrF, defaultWSAddr, wsAddrUsage)
	flags.String(ipcPathF, defaultIPCPath, ipcPathUsage)
	flags.String(metricsAddrF, defaultMetricsAddr, metricsAddrUsage)
	flags.StringSlice(corsOriginsF, nil, corsOriginsUsage)
}
