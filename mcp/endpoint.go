package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/finvoke/finvoke"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcp.RequestId   `json:"id"`
	Method  mcp.MCPMethod   `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func errorResponse(id any, code int, message string) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(id),
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    code,
			Message: message,
		},
	}
}

type MCPEndpoint func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage

const MCPSERVER_INSTRUCTIONS string = `Finvoke answers fintech support questions by orchestrating retrieval and computation tools:

1. **Knowledge Search**: Semantic search over the internal support knowledge base
2. **Web Search**: External lookups for market data and general information
3. **Financial Calculators**: Compound interest and investment return analysis
4. **Guardrails**: Per-conversation call budgets stop unbounded tool loops

Available operations:
- tools/list: Get all available tools
- tools/call: Execute a tool through the budgeted dispatcher

Call the knowledge search first; fall back to web search for external data. When a call reports that the budget is exhausted, stop calling tools and answer from what you have.`

func InitializeEndpoint(svc finvoke.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		protocolVersion := mcp.LATEST_PROTOCOL_VERSION
		if clientVersion := params.ProtocolVersion; clientVersion != "" {
			if slices.Contains(mcp.ValidProtocolVersions, clientVersion) {
				protocolVersion = clientVersion
			}
		}

		result := &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: mcp.ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged,omitempty"`
				}{},
			},
			ServerInfo: mcp.Implementation{
				Name:    "finvoke",
				Version: "1.0.0",
			},
			Instructions: MCPSERVER_INSTRUCTIONS,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func PingEndpoint(svc finvoke.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  struct{}{}, // empty response
		}
	}
}

// ToMCPTool converts a tool descriptor to its MCP representation.
func ToMCPTool(desc finvoke.ToolDescriptor) mcp.Tool {
	properties := make(map[string]any, len(desc.Params))
	required := make([]string, 0)

	for name, spec := range desc.Params {
		property := map[string]any{
			"type": string(spec.Type),
		}

		if spec.Description != "" {
			property["description"] = spec.Description
		}

		properties[name] = property

		if spec.Required {
			required = append(required, name)
		}
	}

	slices.Sort(required)

	return mcp.Tool{
		Name:        desc.Name,
		Description: desc.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
			Required:   required,
		},
	}
}

func ListToolsEndpoint(svc finvoke.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		descriptors, err := svc.ListTools(ctx)
		if err != nil {
			return errorResponse(req.ID, mcp.INTERNAL_ERROR, err.Error())
		}

		tools := make([]mcp.Tool, len(descriptors))
		for i, desc := range descriptors {
			tools[i] = ToMCPTool(desc)
		}

		result := &mcp.ListToolsResult{
			Tools: tools,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func CallToolEndpoint(svc finvoke.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		args, _ := params.Arguments.(map[string]any)

		conversationID, _ := ctx.Value(finvoke.ConversationID).(string)

		result, err := svc.Dispatch(ctx, conversationID, params.Name, args)
		if err != nil {
			// Configuration bugs surface as protocol errors; tool-level
			// failures (budget exhausted, execution failure, no answer)
			// become error results so the agent can fall back gracefully.
			switch {
			case errors.Is(err, finvoke.ErrUnknownTool),
				errors.Is(err, finvoke.ErrInvalidArgument):
				return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())

			default:
				return mcp.JSONRPCResponse{
					JSONRPC: mcp.JSONRPC_VERSION,
					ID:      req.ID,
					Result: &mcp.CallToolResult{
						IsError: true,
						Content: []mcp.Content{
							mcp.NewTextContent(finvoke.Kind(err) + ": " + err.Error()),
						},
					},
				}
			}
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result: &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(result.Content),
				},
			},
		}
	}
}
