package finvoke

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/finvoke/finvoke/knowledge"
)

// Tool names referenced by the hosted agent configuration. They are part of
// the external contract and must not change.
const (
	ToolSearchKnowledgeBase       = "search_knowledge_base"
	ToolSearchWeb                 = "search_web"
	ToolCalculateCompoundInterest = "calculate_compound_interest"
	ToolAnalyzeInvestmentReturns  = "analyze_investment_returns"
	ToolGetMarketData             = "get_market_data"
)

type KnowledgeStats struct {
	Documents int `json:"documents"`
	Dimension int `json:"dimension"`
}

// Service is the retrieval-and-orchestration core. Dispatch is the single
// choke point for tool execution: argument validation and the call-budget
// guardrails apply to every invocation.
type Service interface {

	// Close releases the service. Budgets are in-memory only and are dropped.
	Close() error

	// RegisterTool adds a tool descriptor. Names are unique; registration
	// happens at startup and descriptors are immutable afterwards.
	RegisterTool(ctx context.Context, desc ToolDescriptor) error

	// ListTools returns the registered descriptors in registration order.
	ListTools(ctx context.Context) ([]ToolDescriptor, error)

	// Dispatch validates arguments, enforces the conversation's call budget,
	// and invokes the named tool under a bounded timeout.
	Dispatch(ctx context.Context, conversationID, name string, args map[string]any) (ToolResult, error)

	// Ingest adds passages to the knowledge base, all-or-nothing.
	Ingest(ctx context.Context, passages []knowledge.PassageInput) error

	// Stats reports the knowledge base size and embedding dimensionality.
	Stats(ctx context.Context) (KnowledgeStats, error)

	// ResetBudget drops a conversation's call budget, at conversation start
	// or end.
	ResetBudget(ctx context.Context, conversationID string) error
}

type ServiceMiddleware func(Service) Service

func NewService(cfg Config, store *knowledge.Store) (Service, error) {
	cfg.ApplyDefaults()

	svc := &service{
		tools:   make(map[string]ToolDescriptor),
		budgets: newBudgetTable(),

		store: store,
		cfg:   cfg,
	}

	err := svc.RegisterTool(context.Background(),
		searchKnowledgeDescriptor(store, cfg.Knowledge.SearchK))
	if err != nil {
		return nil, err
	}

	return svc, nil
}

type service struct {
	toolsMu sync.RWMutex
	tools   map[string]ToolDescriptor
	order   []string

	budgets *budgetTable

	store *knowledge.Store
	cfg   Config
}

func (svc *service) Close() error {
	return nil
}

func (svc *service) RegisterTool(ctx context.Context, desc ToolDescriptor) error {
	if desc.Name == "" {
		return ErrInvalidToolName
	}

	if desc.Handler == nil {
		return fmt.Errorf("%w: %q has no handler", ErrInvalidToolName, desc.Name)
	}

	svc.toolsMu.Lock()
	defer svc.toolsMu.Unlock()

	if _, ok := svc.tools[desc.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, desc.Name)
	}

	svc.tools[desc.Name] = desc
	svc.order = append(svc.order, desc.Name)

	return nil
}

func (svc *service) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	svc.toolsMu.RLock()
	defer svc.toolsMu.RUnlock()

	tools := make([]ToolDescriptor, 0, len(svc.order))
	for _, name := range svc.order {
		tools = append(tools, svc.tools[name])
	}

	return tools, nil
}

func (svc *service) Dispatch(ctx context.Context, conversationID, name string, args map[string]any) (ToolResult, error) {
	svc.toolsMu.RLock()
	desc, ok := svc.tools[name]
	svc.toolsMu.RUnlock()

	if !ok {
		return ToolResult{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	if args == nil {
		args = make(map[string]any)
	}

	if err := desc.ValidateArguments(args); err != nil {
		return ToolResult{}, err
	}

	b := svc.budgets.get(conversationID)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.calls >= svc.cfg.Guardrails.MaxToolCalls {
		return ToolResult{}, fmt.Errorf("%w: %d tool calls in conversation",
			ErrBudgetExceeded, b.calls)
	}

	if b.unproductive >= svc.cfg.Guardrails.MaxUnproductiveSearches {
		return ToolResult{}, fmt.Errorf("%w: %d consecutive unproductive retrievals",
			ErrBudgetExceeded, b.unproductive)
	}

	timeout := desc.Timeout.Duration()
	if timeout <= 0 {
		timeout = svc.cfg.Tools.Timeout.Duration()
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := desc.Handler(callCtx, args)
	if err != nil {
		if errors.Is(err, ErrEmbedding) {
			// Recoverable "no answer": surfaced as-is, counted as an
			// unproductive retrieval.
			b.calls++
			if desc.Kind == ToolKindRetrieval {
				b.unproductive++
			}

			return ToolResult{}, err
		}

		cause := err.Error()
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			cause = "timed out after " + timeout.String()
		}

		// A failed retrieval attempt is as unproductive as an empty one, so
		// a persistently failing retrieval tool still trips the guardrail.
		if desc.Kind == ToolKindRetrieval {
			b.unproductive++
		}

		return ToolResult{}, fmt.Errorf("%w: tool %q: %s", ErrToolExecution, name, cause)
	}

	b.calls++

	if desc.Kind == ToolKindRetrieval {
		if result.Hits > 0 && result.TopScore >= svc.cfg.Guardrails.SimilarityFloor {
			b.unproductive = 0
		} else {
			b.unproductive++
		}
	}

	return result, nil
}

func (svc *service) Ingest(ctx context.Context, passages []knowledge.PassageInput) error {
	return svc.store.Ingest(ctx, passages)
}

func (svc *service) Stats(ctx context.Context) (KnowledgeStats, error) {
	return KnowledgeStats{
		Documents: svc.store.Count(),
		Dimension: svc.store.Dimension(),
	}, nil
}

func (svc *service) ResetBudget(ctx context.Context, conversationID string) error {
	svc.budgets.reset(conversationID)
	return nil
}

func searchKnowledgeDescriptor(store *knowledge.Store, k int) ToolDescriptor {
	return ToolDescriptor{
		Name:        ToolSearchKnowledgeBase,
		Description: "Search the internal knowledge base for company policies, procedures, FAQs, and support information. Use this first for any questions about account management, products, or services.",
		Kind:        ToolKindRetrieval,
		Params: map[string]ParamSpec{
			"query": {
				Type:        ParamTypeString,
				Description: "The user's question or search query",
				Required:    true,
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			query, _ := String(args, "query")

			results, err := store.Search(ctx, query, k)
			if err != nil {
				return ToolResult{}, err
			}

			if len(results) == 0 {
				return ToolResult{
					Content: "No relevant information found in the knowledge base.",
				}, nil
			}

			var sb strings.Builder
			for i, result := range results {
				if i > 0 {
					sb.WriteString("\n\n")
				}

				fmt.Fprintf(&sb, "Result %d - %s:\n%s",
					i+1, result.Passage.Title, result.Passage.Content)
			}

			return ToolResult{
				Content:  sb.String(),
				Hits:     len(results),
				TopScore: results[0].Score,
			}, nil
		},
	}
}
