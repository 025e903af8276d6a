package finvoke

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"

	"github.com/finvoke/finvoke/knowledge"
)

type EndpointSet struct {
	Dispatch    endpoint.Endpoint
	ListTools   endpoint.Endpoint
	Ingest      endpoint.Endpoint
	Stats       endpoint.Endpoint
	ResetBudget endpoint.Endpoint
}

type DispatchRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func DispatchEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(DispatchRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		conversationID, _ := ctx.Value(ConversationID).(string)

		return svc.Dispatch(ctx, conversationID, req.Name, req.Arguments)
	}
}

func ListToolsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.ListTools(ctx)
	}
}

type IngestRequest struct {
	Passages []knowledge.PassageInput `json:"passages"`
}

func IngestEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(IngestRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		err := svc.Ingest(ctx, req.Passages)
		return nil, err
	}
}

func StatsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Stats(ctx)
	}
}

func ResetBudgetEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		conversationID, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		err := svc.ResetBudget(ctx, conversationID)
		return nil, err
	}
}
