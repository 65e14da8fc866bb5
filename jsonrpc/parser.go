package jsonrpc

import (
	"bytes"
	"encoding/json"
)

// Message is a parsed inbound message: a single element or a batch.
// Elements are not validated beyond being JSON values.
type Message struct {
	Batch    bool
	Elements []json.RawMessage
}

// Parse checks that message is a JSON object or a non-empty JSON array. It
// returns a ParseError for malformed JSON and an InvalidRequest for any other
// top-level shape. The returned error is always an *Error.
func Parse(message []byte) (*Message, error) {
	trimmed := bytes.TrimSpace(message)
	if err := validJSON(trimmed); err != nil {
		return nil, Err(ParseError, err.Error())
	}

	switch trimmed[0] {
	case '{':
		return &Message{Elements: []json.RawMessage{json.RawMessage(trimmed)}}, nil
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil, Err(ParseError, err.Error())
		}
		if len(elements) == 0 {
			return nil, Err(InvalidRequest, "empty batch")
		}
		return &Message{Batch: true, Elements: elements}, nil
	default:
		return nil, Err(InvalidRequest, "message must be an object or an array")
	}
}

func validJSON(data []byte) error {
	var v json.RawMessage
	// Unmarshal reports a positioned syntax error, json.Valid does not.
	return json.Unmarshal(data, &v)
}

// IsResponse reports whether an element is shaped like a response: an object
// with a "result" or an "error" member, whatever their values. Every other
// element is treated as a request.
func IsResponse(raw json.RawMessage) bool {
	fields, ok := objectFields(raw)
	return ok && isResponseShaped(fields)
}

func isResponseShaped(fields map[string]json.RawMessage) bool {
	_, hasResult := fields["result"]
	_, hasError := fields["error"]
	return hasResult || hasError
}

func objectFields(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
