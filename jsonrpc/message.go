package jsonrpc

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

// Request is a request or, when ID is absent, a notification.
type Request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      ID              `json:"id,omitzero"`
}

func (r Request) IsNotification() bool {
	return r.ID.IsZero()
}

// MarshalJSON always emits the "2.0" version literal.
func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request
	r.Version = Version
	return json.Marshal(plain(r))
}

// Response carries either Result or Error, never both. A nil Error marks a
// success response, whose result is encoded as null when Result is nil.
type Response struct {
	Version string
	Result  json.RawMessage
	Error   *Error
	ID      ID
}

type successResponse struct {
	Version string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	ID      ID              `json:"id"`
}

type errorResponse struct {
	Version string `json:"jsonrpc"`
	Error   *Error `json:"error"`
	ID      ID     `json:"id"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(&errorResponse{Version: Version, Error: r.Error, ID: r.ID})
	}
	return json.Marshal(&successResponse{Version: Version, Result: r.Result, ID: r.ID})
}

// NewRequest builds a request with an explicit id. A zero id produces a
// notification. The method name is not validated.
func NewRequest(method string, params any, id ID) (*Request, error) {
	rawParams, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Request{
		Version: Version,
		Method:  method,
		Params:  rawParams,
		ID:      id,
	}, nil
}

// NewNotification builds a request that never carries an id.
func NewNotification(method string, params any) (*Request, error) {
	return NewRequest(method, params, ID{})
}

// NewResponse builds a response to the request identified by id. An absent id
// becomes null. A non-nil err produces an error response, otherwise result is
// encoded, nil being sent as an explicit null.
func NewResponse(id ID, result any, err error) (*Response, error) {
	if id.IsZero() {
		id = NullID()
	}
	if err != nil {
		return &Response{Version: Version, Error: Convert(err), ID: id}, nil
	}

	rawResult, marshalErr := marshalResult(result)
	if marshalErr != nil {
		return nil, marshalErr
	}
	return &Response{Version: Version, Result: rawResult, ID: id}, nil
}

func newErrorResponse(id ID, rpcErr *Error) *Response {
	if id.IsZero() {
		id = NullID()
	}
	return &Response{Version: Version, Error: rpcErr, ID: id}
}

func marshalParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return raw, nil
}

func marshalResult(result any) (json.RawMessage, error) {
	switch r := result.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if r == nil {
			return json.RawMessage("null"), nil
		}
		return r, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return raw, nil
}
