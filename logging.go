package finvoke

import (
	"context"

	"go.uber.org/zap"

	"github.com/finvoke/finvoke/knowledge"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "finvoke"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) RegisterTool(ctx context.Context, desc ToolDescriptor) error {
	log := mw.log.With(
		zap.String("action", "register_tool"),
		zap.String("tool", desc.Name),
		zap.String("kind", string(desc.Kind)),
	)

	err := mw.next.RegisterTool(ctx, desc)
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("tool registered")
	return nil
}

func (mw *loggingMiddleware) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	log := mw.log.With(
		zap.String("action", "list_tools"),
	)

	tools, err := mw.next.ListTools(ctx)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("tools listed", zap.Int("count", len(tools)))
	return tools, nil
}

func (mw *loggingMiddleware) Dispatch(ctx context.Context, conversationID, name string, args map[string]any) (ToolResult, error) {
	log := mw.log.With(
		zap.String("action", "dispatch"),
		zap.String("conversation_id", conversationID),
		zap.String("tool", name),
	)

	result, err := mw.next.Dispatch(ctx, conversationID, name, args)
	if err != nil {
		log.Error(err.Error(), zap.String("kind", Kind(err)))
		return ToolResult{}, err
	}

	log.Info("tool dispatched",
		zap.Int("hits", result.Hits),
		zap.Float64("top_score", result.TopScore),
	)

	return result, nil
}

func (mw *loggingMiddleware) Ingest(ctx context.Context, passages []knowledge.PassageInput) error {
	log := mw.log.With(
		zap.String("action", "ingest"),
		zap.Int("passages", len(passages)),
	)

	err := mw.next.Ingest(ctx, passages)
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("passages ingested")
	return nil
}

func (mw *loggingMiddleware) Stats(ctx context.Context) (KnowledgeStats, error) {
	log := mw.log.With(
		zap.String("action", "stats"),
	)

	stats, err := mw.next.Stats(ctx)
	if err != nil {
		log.Error(err.Error())
		return KnowledgeStats{}, err
	}

	log.Info("stats collected", zap.Int("documents", stats.Documents))
	return stats, nil
}

func (mw *loggingMiddleware) ResetBudget(ctx context.Context, conversationID string) error {
	log := mw.log.With(
		zap.String("action", "reset_budget"),
		zap.String("conversation_id", conversationID),
	)

	err := mw.next.ResetBudget(ctx, conversationID)
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("budget reset")
	return nil
}
