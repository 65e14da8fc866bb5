package node

import (
	"context"
	"encoding/json"
	"time"

	"github.com/NethermindEth/rpcpeer/jsonrpc"
	"github.com/NethermindEth/rpcpeer/utils"
)

const maxSleep = time.Minute

// SleepInterrupted is returned by sleep when the request is abandoned first.
const SleepInterrupted = -32001

// Methods returns the built-in method table ready to serve.
func Methods(log utils.SimpleLogger) (*jsonrpc.Methods, error) {
	methods := jsonrpc.NewMethods()
	for _, method := range MethodTable(log) {
		if err := methods.RegisterMethod(method); err != nil {
			return nil, err
		}
	}
	return methods, nil
}

// MethodTable lists the built-in methods.
func MethodTable(log utils.SimpleLogger) []jsonrpc.Method {
	return []jsonrpc.Method{
		{
			Name:    "echo",
			Params:  []jsonrpc.Parameter{{Name: "value"}},
			Handler: echo,
		},
		{
			Name:    "sum",
			Params:  []jsonrpc.Parameter{{Name: "terms", Variadic: true}},
			Handler: sum,
		},
		{
			Name:    "subtract",
			Params:  []jsonrpc.Parameter{{Name: "minuend"}, {Name: "subtrahend"}},
			Handler: subtract,
		},
		{
			Name:    "notify_hello",
			Params:  []jsonrpc.Parameter{{Name: "value", Optional: true}},
			Handler: notifyHello(log),
		},
		{
			Name:    "fail",
			Params:  []jsonrpc.Parameter{{Name: "message", Optional: true}},
			Handler: fail,
		},
		{
			Name:    "sleep",
			Params:  []jsonrpc.Parameter{{Name: "milliseconds"}},
			Handler: sleep,
		},
	}
}

func echo(value json.RawMessage) (json.RawMessage, *jsonrpc.Error) {
	return value, nil
}

func sum(terms []float64) (float64, *jsonrpc.Error) {
	var total float64
	for _, term := range terms {
		total += term
	}
	return total, nil
}

func subtract(minuend, subtrahend float64) (float64, *jsonrpc.Error) {
	return minuend - subtrahend, nil
}

// notifyHello logs its argument and never replies, even when called with an id.
func notifyHello(log utils.SimpleLogger) func(json.RawMessage) (jsonrpc.Result, *jsonrpc.Error) {
	return func(value json.RawMessage) (jsonrpc.Result, *jsonrpc.Error) {
		log.Infow("Hello", "value", string(value))
		return jsonrpc.NoResponse, nil
	}
}

func fail(message string) (any, *jsonrpc.Error) {
	return nil, jsonrpc.NewError(jsonrpc.ServerErrorMax, message, nil)
}

func sleep(ctx context.Context, milliseconds uint) (uint, *jsonrpc.Error) {
	duration := time.Duration(milliseconds) * time.Millisecond
	if duration > maxSleep {
		return 0, jsonrpc.Err(jsonrpc.InvalidParams, "sleep is limited to "+maxSleep.String())
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return milliseconds, nil
	case <-ctx.Done():
		return 0, jsonrpc.NewError(SleepInterrupted, "Sleep interrupted", ctx.Err().Error())
	}
}
