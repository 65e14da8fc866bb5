package jsonrpc

import "time"

type NewRequestListener interface {
	OnNewRequest(method string)
}

type EventListener interface {
	NewRequestListener
	OnRequestHandled(method string, took time.Duration)
	OnRequestFailed(method string, data any)
	OnCallSent(method string)
	OnCallSettled(method string, took time.Duration, err error)
}

type SelectiveListener struct {
	OnNewRequestCb     func(method string)
	OnRequestHandledCb func(method string, took time.Duration)
	OnRequestFailedCb  func(method string, data any)
	OnCallSentCb       func(method string)
	OnCallSettledCb    func(method string, took time.Duration, err error)
}

func (l *SelectiveListener) OnNewRequest(method string) {
	if l.OnNewRequestCb != nil {
		l.OnNewRequestCb(method)
	}
}

func (l *SelectiveListener) OnRequestHandled(method string, took time.Duration) {
	if l.OnRequestHandledCb != nil {
		l.OnRequestHandledCb(method, took)
	}
}

func (l *SelectiveListener) OnRequestFailed(method string, data any) {
	if l.OnRequestFailedCb != nil {
		l.OnRequestFailedCb(method, data)
	}
}

func (l *SelectiveListener) OnCallSent(method string) {
	if l.OnCallSentCb != nil {
		l.OnCallSentCb(method)
	}
}

func (l *SelectiveListener) OnCallSettled(method string, took time.Duration, err error) {
	if l.OnCallSettledCb != nil {
		l.OnCallSettledCb(method, took, err)
	}
}
