package nats

import (
	"context"
	"encoding/json"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go/micro"

	"github.com/finvoke/finvoke"
)

// ConversationHeader carries the caller-supplied conversation identity.
const ConversationHeader = "conversation_id"

func DispatchHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req finvoke.DispatchRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()

		conversationID := r.Headers().Get(ConversationHeader)
		if conversationID != "" {
			ctx = context.WithValue(ctx, finvoke.ConversationID, conversationID)
		}

		resp, err := endpoint(ctx, req)
		if err != nil {
			r.Error(finvoke.Kind(err), err.Error(), nil)
			return
		}

		result, ok := resp.(finvoke.ToolResult)
		if !ok {
			r.Error("internal", "invalid response type", nil)
			return
		}

		r.RespondJSON(&result)
	}
}

func ListToolsHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		ctx := context.Background()

		resp, err := endpoint(ctx, nil)
		if err != nil {
			r.Error(finvoke.Kind(err), err.Error(), nil)
			return
		}

		tools, ok := resp.([]finvoke.ToolDescriptor)
		if !ok {
			r.Error("internal", "invalid response type", nil)
			return
		}

		r.RespondJSON(&tools)
	}
}

func IngestHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req finvoke.IngestRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		if _, err := endpoint(ctx, req); err != nil {
			r.Error(finvoke.Kind(err), err.Error(), nil)
			return
		}

		r.Respond([]byte("OK"))
	}
}

func StatsHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		ctx := context.Background()

		resp, err := endpoint(ctx, nil)
		if err != nil {
			r.Error(finvoke.Kind(err), err.Error(), nil)
			return
		}

		stats, ok := resp.(finvoke.KnowledgeStats)
		if !ok {
			r.Error("internal", "invalid response type", nil)
			return
		}

		r.RespondJSON(&stats)
	}
}

func ResetBudgetHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		conversationID := string(r.Data())
		if conversationID == "" {
			r.Error("400", "conversation id is required", nil)
			return
		}

		ctx := context.Background()
		if _, err := endpoint(ctx, conversationID); err != nil {
			r.Error(finvoke.Kind(err), err.Error(), nil)
			return
		}

		r.Respond([]byte("OK"))
	}
}
