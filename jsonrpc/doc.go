// Package jsonrpc implements the JSON-RPC 2.0 message layer described in
// https://www.jsonrpc.org/specification without being tied to a transport.
//
// A Peer formats outgoing requests and notifications, hands them to a Sender,
// and correlates the responses it is given back through Receive with the calls
// waiting for them. Requests received the same way are served by a Handler and
// answered through the same Sender. Input is parsed leniently; output is always
// strict JSON-RPC 2.0.
package jsonrpc
