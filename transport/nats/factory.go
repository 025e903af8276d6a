package nats

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/finvoke/finvoke"
)

// MakeEndpoints builds client-side endpoints that call a remote finvoke
// instance over NATS request/reply. Combine with ProxyMiddleware to obtain a
// Service backed by the remote.
func MakeEndpoints(nc *nats.Conn, prefix string) *finvoke.EndpointSet {
	return &finvoke.EndpointSet{
		Dispatch:    DispatchEndpoint(nc, prefix+".dispatch"),
		ListTools:   ListToolsEndpoint(nc, prefix+".list_tools"),
		Ingest:      IngestEndpoint(nc, prefix+".ingest"),
		Stats:       StatsEndpoint(nc, prefix+".stats"),
		ResetBudget: ResetBudgetEndpoint(nc, prefix+".reset_budget"),
	}
}

func DispatchEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(finvoke.DispatchRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		header := make(nats.Header)

		conversationID, ok := ctx.Value(finvoke.ConversationID).(string)
		if ok {
			header.Set(ConversationHeader, conversationID)
		}

		msg := nats.NewMsg(topic)
		msg.Header = header
		msg.Data = data

		resp, err := nc.RequestMsg(msg, nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		if err := Error(resp); err != nil {
			return nil, err
		}

		var result finvoke.ToolResult
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, err
		}

		return result, nil
	}
}

func ListToolsEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		resp, err := nc.Request(topic, nil, nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		if err := Error(resp); err != nil {
			return nil, err
		}

		var tools []finvoke.ToolDescriptor
		if err := json.Unmarshal(resp.Data, &tools); err != nil {
			return nil, err
		}

		return tools, nil
	}
}

func IngestEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(finvoke.IngestRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		resp, err := nc.Request(topic, data, nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		if err := Error(resp); err != nil {
			return nil, err
		}

		return string(resp.Data), nil
	}
}

func StatsEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		resp, err := nc.Request(topic, nil, nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		if err := Error(resp); err != nil {
			return nil, err
		}

		var stats finvoke.KnowledgeStats
		if err := json.Unmarshal(resp.Data, &stats); err != nil {
			return nil, err
		}

		return stats, nil
	}
}

func ResetBudgetEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		conversationID, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request")
		}

		resp, err := nc.Request(topic, []byte(conversationID), nats.DefaultTimeout)
		if err != nil {
			return nil, err
		}

		if err := Error(resp); err != nil {
			return nil, err
		}

		return string(resp.Data), nil
	}
}

// Error extracts a service error from a micro reply, if any. The error code
// header carries the stable error kind.
func Error(msg *nats.Msg) error {
	if msg == nil {
		return errors.New("nil message")
	}

	code := msg.Header.Get(micro.ErrorCodeHeader)
	if code == "" {
		return nil
	}

	description := msg.Header.Get(micro.ErrorHeader)
	if description == "" {
		description = "unknown error"
	}

	return errors.New(code + ":" + description)
}
