// Package fixapp is a minimal reference ApplicationHandler: it
// acknowledges every inbound NewOrderSingle with an ExecutionReport,
// routed through the middleware chain (logging, rate limiting,
// timeout) before the acknowledgement is built. cmd/fixserver wires it
// in as the default business handler.
//
// Grounded on the teacher's Server.businessHandler (server/server.go):
// the same "one handler behind the middleware chain" shape, repointed
// from reflect.Call-based service/method dispatch to a fixed MsgType
// switch, since a FIX core has no service registry to reflect into.
package fixapp

import (
	"context"

	"fixcore/message"
	"fixcore/middleware"
)

// EchoExecutionApp implements session.ApplicationHandler.
type EchoExecutionApp struct {
	handler middleware.HandlerFunc
}

// New wires mws around the business handler, outermost first, matching
// middleware.Chain's execution order.
func New(mws ...middleware.Middleware) *EchoExecutionApp {
	a := &EchoExecutionApp{}
	a.handler = middleware.Chain(mws...)(a.business)
	return a
}

// OnApplicationMessage adapts the middleware.HandlerFunc result shape
// to the ApplicationHandler contract.
func (a *EchoExecutionApp) OnApplicationMessage(ctx context.Context, sessionID string, m *message.FixMessage) ([]*message.FixMessage, error) {
	res := a.handler(ctx, sessionID, m)
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Replies, nil
}

// business acknowledges a NewOrderSingle; any other application
// MsgType is accepted but produces no reply.
func (a *EchoExecutionApp) business(ctx context.Context, sessionID string, req *message.FixMessage) *middleware.Result {
	if req.MsgType() != message.MsgTypeNewOrderSingle {
		return &middleware.Result{}
	}

	clOrdID, _ := req.Get(message.TagClOrdID)
	symbol, _ := req.Get(message.TagSymbol)
	side, _ := req.Get(message.TagSide)
	orderQty, _ := req.Get(message.TagOrderQty)
	price, _ := req.Get(message.TagPrice)

	reply := message.New()
	reply.Set(message.TagMsgType, message.MsgTypeExecutionReport)
	reply.Set(message.TagClOrdID, clOrdID)
	reply.Set(message.TagSymbol, symbol)
	reply.Set(message.TagSide, side)
	if orderQty != "" {
		reply.Set(message.TagOrderQty, orderQty)
	}
	if price != "" {
		reply.Set(message.TagPrice, price)
	}
	return &middleware.Result{Replies: []*message.FixMessage{reply}}
}
