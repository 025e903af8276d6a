package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"

	"github.com/finvoke/finvoke"

	mcpE "github.com/finvoke/finvoke/mcp"
	natsT "github.com/finvoke/finvoke/transport/nats"
)

// StdioMCPServer bridges a local MCP client (an agent runtime speaking MCP
// over stdio) to a remote finvoke instance.
type StdioMCPServer interface {
	AddEndpoint(method mcp.MCPMethod, endpoint mcpE.MCPEndpoint) error
	Listen(ctx context.Context) error
}

func NewStdioMCPServer() StdioMCPServer {
	return &stdioMCPServer{
		endpoints: make(map[mcp.MCPMethod]mcpE.MCPEndpoint),
	}
}

type stdioMCPServer struct {
	endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint
}

func (s *stdioMCPServer) Listen(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)

	lines := make(chan string)
	errs := make(chan error, 1)

	go func(ctx context.Context, lines chan<- string, errs chan<- error) {
		defer close(lines)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}(ctx, lines, errs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errs:
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err

		case line, ok := <-lines:
			if !ok {
				return nil
			}

			if line == "" {
				continue
			}

			var req mcpE.JSONRPCRequest
			if err := json.Unmarshal([]byte(line), &req); err != nil {
				continue
			}

			if req.ID.IsNil() {
				continue
			}

			var resp mcp.JSONRPCMessage

			endpoint, ok := s.endpoints[req.Method]
			if !ok {
				resp = mcp.JSONRPCError{
					JSONRPC: mcp.JSONRPC_VERSION,
					ID:      req.ID,
					Error: struct {
						Code    int    `json:"code"`
						Message string `json:"message"`
						Data    any    `json:"data,omitempty"`
					}{
						Code:    mcp.METHOD_NOT_FOUND,
						Message: "method not found",
					},
				}
			} else {
				resp = endpoint(ctx, req)
			}

			bs, err := json.Marshal(resp)
			if err != nil {
				continue
			}

			fmt.Fprintf(os.Stdout, "%s\n", bs)
		}
	}
}

func (s *stdioMCPServer) AddEndpoint(method mcp.MCPMethod, endpoint mcpE.MCPEndpoint) error {
	_, ok := s.endpoints[method]
	if ok {
		return errors.New("endpoint already exists")
	}

	s.endpoints[method] = endpoint
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "finvoke_mcp_server",
		Usage: "Finvoke MCP stdio bridge",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL",
				Value:   nats.DefaultURL,
				Sources: cli.EnvVars("NATS_URL"),
			},
			&cli.StringFlag{
				Name:    "nats-creds",
				Usage:   "NATS user credentials file",
				Sources: cli.EnvVars("NATS_CREDS"),
			},
			&cli.StringFlag{
				Name:  "service-id",
				Usage: "Instance identifier of the finvoke service to connect to",
				Value: "main",
			},
			&cli.StringFlag{
				Name:  "conversation-id",
				Usage: "Conversation identifier keying the call budget. A random one is generated when omitted.",
			},
		},
		Action: run,
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serviceID := cmd.String("service-id")
	natsURL := cmd.String("nats")

	opts := []nats.Option{
		nats.Name("Finvoke MCP Server - " + serviceID),
	}

	if creds := cmd.String("nats-creds"); creds != "" {
		opts = append(opts, nats.UserCredentials(creds))
	}

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return err
	}
	defer nc.Drain()

	topic := "finvoke." + serviceID
	endpoints := natsT.MakeEndpoints(nc, topic)

	var svc finvoke.Service
	svc = finvoke.ProxyMiddleware(endpoints)(svc)

	conversationID := cmd.String("conversation-id")
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	ctx = context.WithValue(ctx, finvoke.ConversationID, conversationID)

	srv := NewStdioMCPServer()
	srv.AddEndpoint(mcp.MethodInitialize, mcpE.InitializeEndpoint(svc))
	srv.AddEndpoint(mcp.MethodPing, mcpE.PingEndpoint(svc))
	srv.AddEndpoint(mcp.MethodToolsList, mcpE.ListToolsEndpoint(svc))
	srv.AddEndpoint(mcp.MethodToolsCall, mcpE.CallToolEndpoint(svc))

	return srv.Listen(ctx)
}
