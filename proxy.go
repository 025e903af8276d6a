package finvoke

import (
	"context"
	"errors"

	"github.com/finvoke/finvoke/knowledge"
)

// ProxyMiddleware drives a remote finvoke instance through an EndpointSet
// (see transport/nats for the client-side factory). Tool registration stays
// local to the remote process.
func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Close() error {
	return nil
}

func (mw *proxyMiddleware) RegisterTool(ctx context.Context, desc ToolDescriptor) error {
	return errors.New("remote tool registration is not supported")
}

func (mw *proxyMiddleware) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	resp, err := mw.endpoints.ListTools(ctx, nil)
	if err != nil {
		return nil, err
	}

	tools, ok := resp.([]ToolDescriptor)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return tools, nil
}

func (mw *proxyMiddleware) Dispatch(ctx context.Context, conversationID, name string, args map[string]any) (ToolResult, error) {
	req := DispatchRequest{
		Name:      name,
		Arguments: args,
	}

	ctx = context.WithValue(ctx, ConversationID, conversationID)

	resp, err := mw.endpoints.Dispatch(ctx, req)
	if err != nil {
		return ToolResult{}, err
	}

	result, ok := resp.(ToolResult)
	if !ok {
		return ToolResult{}, errors.New("invalid response type")
	}

	return result, nil
}

func (mw *proxyMiddleware) Ingest(ctx context.Context, passages []knowledge.PassageInput) error {
	req := IngestRequest{
		Passages: passages,
	}

	_, err := mw.endpoints.Ingest(ctx, req)
	return err
}

func (mw *proxyMiddleware) Stats(ctx context.Context) (KnowledgeStats, error) {
	resp, err := mw.endpoints.Stats(ctx, nil)
	if err != nil {
		return KnowledgeStats{}, err
	}

	stats, ok := resp.(KnowledgeStats)
	if !ok {
		return KnowledgeStats{}, errors.New("invalid response type")
	}

	return stats, nil
}

func (mw *proxyMiddleware) ResetBudget(ctx context.Context, conversationID string) error {
	_, err := mw.endpoints.ResetBudget(ctx, conversationID)
	return err
}
