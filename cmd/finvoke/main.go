package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/finvoke/finvoke"
	"github.com/finvoke/finvoke/knowledge"
	"github.com/finvoke/finvoke/persistence/chromem"
	"github.com/finvoke/finvoke/persistence/flat"
	"github.com/finvoke/finvoke/tools/fincalc"
	"github.com/finvoke/finvoke/tools/websearch"
	"github.com/finvoke/finvoke/vector"

	"github.com/finvoke/finvoke/embedding"
	mcpE "github.com/finvoke/finvoke/mcp"
	httpT "github.com/finvoke/finvoke/transport/http"
	natsT "github.com/finvoke/finvoke/transport/nats"
)

func main() {
	cmd := &cli.Command{
		Name:  "finvoke",
		Usage: "Finvoke retrieval and tool-dispatch service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to the finvoke data directory",
			},
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL (empty disables the NATS transport)",
				Sources: cli.EnvVars("NATS_URL"),
			},
			&cli.StringFlag{
				Name:    "nats-creds",
				Usage:   "NATS user credentials file",
				Sources: cli.EnvVars("NATS_CREDS"),
			},
			&cli.StringFlag{
				Name:  "service-id",
				Usage: "Instance identifier used in NATS subjects",
				Value: "main",
			},
			&cli.BoolFlag{
				Name:  "http",
				Usage: "Enable HTTP transport",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "http-addr",
				Usage: "HTTP server address",
				Value: ":8080",
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
	path := cmd.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		path = filepath.Join(homeDir, ".finvoke")
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	cfg := finvoke.Config{
		Knowledge: finvoke.KnowledgeConfig{
			Seed: true,
		},
	}

	f, err := os.Open(filepath.Join(path, "config.yaml"))
	switch {
	case err == nil:
		err := yaml.NewDecoder(f).Decode(&cfg)
		f.Close()
		if err != nil {
			return err
		}

	case os.IsNotExist(err):
		log.Info("no config file found, using defaults")

	default:
		return err
	}

	cfg.ApplyDefaults()

	if cfg.Vector.Path == "" {
		cfg.Vector.Path = filepath.Join(path, "knowledge")
	}

	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "knowledge"
	}

	embedder, err := embedding.New(cfg.Knowledge.Embedding)
	if err != nil {
		return err
	}

	var index vector.Index

	switch cfg.Vector.Backend {
	case vector.BackendChromem:
		index, err = chromem.NewIndex(cfg.Vector)

	case vector.BackendFlat, "":
		index, err = flat.Open(cfg.Vector.Path, cfg.Vector.Collection)

	default:
		err = errors.New("unsupported vector backend: " + string(cfg.Vector.Backend))
	}

	if err != nil {
		return err
	}

	store := knowledge.NewStore(embedder, index)

	if cfg.Knowledge.Seed && store.Count() == 0 {
		if err := store.Ingest(ctx, knowledge.Seed()); err != nil {
			return err
		}

		log.Info("knowledge base seeded", zap.Int("documents", store.Count()))
	}

	svc, err := finvoke.NewService(cfg, store)
	if err != nil {
		return err
	}
	defer svc.Close()

	svc = finvoke.LoggingMiddleware(log)(svc)

	client := websearch.NewClient(websearch.Config{
		BaseURL: cfg.Tools.WebSearch.URL,
		Timeout: cfg.Tools.WebSearch.Timeout.Duration(),
	})

	descriptors := []finvoke.ToolDescriptor{
		websearch.SearchDescriptor(client),
		websearch.MarketDataDescriptor(client),
		fincalc.CompoundInterestDescriptor(),
		fincalc.AnalyzeReturnsDescriptor(),
	}

	for _, desc := range descriptors {
		if err := svc.RegisterTool(ctx, desc); err != nil {
			return err
		}
	}

	endpoints := finvoke.EndpointSet{
		Dispatch:    finvoke.DispatchEndpoint(svc),
		ListTools:   finvoke.ListToolsEndpoint(svc),
		Ingest:      finvoke.IngestEndpoint(svc),
		Stats:       finvoke.StatsEndpoint(svc),
		ResetBudget: finvoke.ResetBudgetEndpoint(svc),
	}

	natsURL := cmd.String("nats")
	if natsURL != "" {
		serviceID := cmd.String("service-id")

		opts := []nats.Option{
			nats.Name("Finvoke - " + serviceID),
		}

		if creds := cmd.String("nats-creds"); creds != "" {
			opts = append(opts, nats.UserCredentials(creds))
		}

		nc, err := nats.Connect(natsURL, opts...)
		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := micro.AddService(nc, micro.Config{
			Name:    "finvoke",
			Version: "1.0.0",
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		topic := "finvoke." + serviceID

		root := srv.AddGroup(topic)
		natsT.AddEndpoints(root, endpoints)
	}

	httpEnabled := cmd.Bool("http")
	if httpEnabled {
		r := gin.Default()
		httpT.AddRouters(r, endpoints)

		endpoints := make(map[mcp.MCPMethod]mcpE.MCPEndpoint)
		endpoints[mcp.MethodInitialize] = mcpE.InitializeEndpoint(svc)
		endpoints[mcp.MethodPing] = mcpE.PingEndpoint(svc)
		endpoints[mcp.MethodToolsList] = mcpE.ListToolsEndpoint(svc)
		endpoints[mcp.MethodToolsCall] = mcpE.CallToolEndpoint(svc)
		httpT.AddStreamableRouters(r, endpoints)

		httpAddr := cmd.String("http-addr")
		go r.Run(httpAddr)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))
	return nil
}
