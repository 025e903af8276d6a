package finvoke_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/finvoke/finvoke"
	"github.com/finvoke/finvoke/embedding"
	"github.com/finvoke/finvoke/knowledge"
	"github.com/finvoke/finvoke/persistence/flat"
	"github.com/finvoke/finvoke/tools/fincalc"
)

func newTestService(t *testing.T, mutate func(cfg *finvoke.Config)) finvoke.Service {
	t.Helper()

	index, err := flat.Open("", "knowledge")
	if err != nil {
		t.Fatal(err)
	}

	store := knowledge.NewStore(embedding.NewHashEmbedder(128), index)

	cfg := finvoke.Config{
		Knowledge: finvoke.KnowledgeConfig{
			SearchK: 3,
		},
	}

	if mutate != nil {
		mutate(&cfg)
	}

	svc, err := finvoke.NewService(cfg, store)
	if err != nil {
		t.Fatal(err)
	}

	return svc
}

// scriptedSearchTool is a retrieval tool whose next result is controlled by
// the test, used to drive the productivity tracking deterministically.
func scriptedSearchTool(name string, next *finvoke.ToolResult) finvoke.ToolDescriptor {
	return finvoke.ToolDescriptor{
		Name: name,
		Kind: finvoke.ToolKindRetrieval,
		Params: map[string]finvoke.ParamSpec{
			"query": {Type: finvoke.ParamTypeString, Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (finvoke.ToolResult, error) {
			return *next, nil
		},
	}
}

type finvokeTestSuite struct {
	suite.Suite
	ctx context.Context
	svc finvoke.Service
}

func (suite *finvokeTestSuite) SetupSuite() {
	ctx := context.Background()

	svc := newTestService(suite.T(), nil)

	passages := []knowledge.PassageInput{
		{
			Title:   "Withdrawal Policy",
			Content: "Funds may be withdrawn within 3 business days of a request. Minimum withdrawal is $100.",
		},
	}

	if err := svc.Ingest(ctx, passages); err != nil {
		suite.Fail(err.Error())
		return
	}

	for _, desc := range []finvoke.ToolDescriptor{
		fincalc.CompoundInterestDescriptor(),
		fincalc.AnalyzeReturnsDescriptor(),
	} {
		if err := svc.RegisterTool(ctx, desc); err != nil {
			suite.Fail(err.Error())
			return
		}
	}

	suite.ctx = ctx
	suite.svc = svc
}

func (suite *finvokeTestSuite) TestListTools() {
	tools, err := suite.svc.ListTools(suite.ctx)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Len(tools, 3)
	suite.Equal(finvoke.ToolSearchKnowledgeBase, tools[0].Name)
}

func (suite *finvokeTestSuite) TestDispatchUnknownTool() {
	_, err := suite.svc.Dispatch(suite.ctx, "conv-unknown", "no_such_tool", nil)
	suite.ErrorIs(err, finvoke.ErrUnknownTool)
}

func (suite *finvokeTestSuite) TestDispatchMissingArgument() {
	_, err := suite.svc.Dispatch(suite.ctx, "conv-missing", finvoke.ToolCalculateCompoundInterest,
		map[string]any{"rate": 5.0, "time": 2.0})

	if suite.ErrorIs(err, finvoke.ErrInvalidArgument) {
		suite.Contains(err.Error(), `"principal"`)
	}
}

func (suite *finvokeTestSuite) TestDispatchCompoundInterest() {
	args := map[string]any{
		"principal": 5000.0,
		"rate":      5.0,
		"time":      2.0,
	}

	result, err := suite.svc.Dispatch(suite.ctx, "conv-compound", finvoke.ToolCalculateCompoundInterest, args)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	expected := 5000 * math.Pow(1+0.05/12, 12*2)
	suite.Contains(result.Content, fmt.Sprintf("Final Amount: $%.2f", expected))

	// Deterministic: a repeat yields the identical report.
	again, err := suite.svc.Dispatch(suite.ctx, "conv-compound", finvoke.ToolCalculateCompoundInterest, args)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(result.Content, again.Content)
}

func (suite *finvokeTestSuite) TestDispatchKnowledgeSearch() {
	result, err := suite.svc.Dispatch(suite.ctx, "conv-knowledge", finvoke.ToolSearchKnowledgeBase,
		map[string]any{"query": "how do I withdraw money"})

	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(1, result.Hits)
	suite.Greater(result.TopScore, 0.0)
	suite.Contains(result.Content, "Withdrawal Policy")
	suite.Contains(result.Content, "3 business days")
}

func (suite *finvokeTestSuite) TestStats() {
	stats, err := suite.svc.Stats(suite.ctx)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(1, stats.Documents)
	suite.Equal(128, stats.Dimension)
}

func (suite *finvokeTestSuite) TearDownSuite() {
	if suite.svc != nil {
		suite.svc.Close()
	}

	suite.ctx = nil
	suite.svc = nil
}

func TestFinvokeTestSuite(t *testing.T) {
	suite.Run(t, new(finvokeTestSuite))
}

func TestDuplicateToolRegistration(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	svc := newTestService(t, nil)
	defer svc.Close()

	err := svc.RegisterTool(ctx, fincalc.CompoundInterestDescriptor())
	assert.NoError(err)

	err = svc.RegisterTool(ctx, fincalc.CompoundInterestDescriptor())
	assert.ErrorIs(err, finvoke.ErrDuplicateTool)
}

func TestSearchEmptyIndex(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	svc := newTestService(t, nil)
	defer svc.Close()

	result, err := svc.Dispatch(ctx, "conv", finvoke.ToolSearchKnowledgeBase,
		map[string]any{"query": "anything at all"})

	assert.NoError(err)
	assert.Zero(result.Hits)
	assert.Contains(result.Content, "No relevant information found")
}

func TestReingestDuplicates(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	svc := newTestService(t, nil)
	defer svc.Close()

	passage := knowledge.PassageInput{
		Title:   "Wire Transfer Fees",
		Content: "Outgoing wire transfers cost $25 and settle the same day.",
	}

	assert.NoError(svc.Ingest(ctx, []knowledge.PassageInput{passage}))
	assert.NoError(svc.Ingest(ctx, []knowledge.PassageInput{passage}))

	stats, err := svc.Stats(ctx)
	assert.NoError(err)
	assert.Equal(2, stats.Documents)

	result, err := svc.Dispatch(ctx, "conv", finvoke.ToolSearchKnowledgeBase,
		map[string]any{"query": "wire transfer fees"})

	assert.NoError(err)
	assert.Equal(2, result.Hits)
}

func TestUnproductiveBudget(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	svc := newTestService(t, func(cfg *finvoke.Config) {
		cfg.Guardrails.MaxUnproductiveSearches = 3
		cfg.Guardrails.SimilarityFloor = 0.5
		cfg.Guardrails.MaxToolCalls = 100
	})
	defer svc.Close()

	next := finvoke.ToolResult{}
	assert.NoError(svc.RegisterTool(ctx, scriptedSearchTool("search_archive", &next)))

	args := map[string]any{"query": "anything"}

	unproductive := finvoke.ToolResult{Content: "nothing found"}
	productive := finvoke.ToolResult{Content: "found it", Hits: 2, TopScore: 0.9}

	// Two unproductive calls, then a productive one resets the counter.
	next = unproductive
	for i := 0; i < 2; i++ {
		_, err := svc.Dispatch(ctx, "conv", "search_archive", args)
		assert.NoError(err)
	}

	next = productive
	_, err := svc.Dispatch(ctx, "conv", "search_archive", args)
	assert.NoError(err)

	// Three consecutive unproductive calls exhaust the ceiling; the next
	// dispatch is refused even though tool and arguments are valid.
	next = unproductive
	for i := 0; i < 3; i++ {
		_, err := svc.Dispatch(ctx, "conv", "search_archive", args)
		assert.NoError(err)
	}

	_, err = svc.Dispatch(ctx, "conv", "search_archive", args)
	assert.ErrorIs(err, finvoke.ErrBudgetExceeded)

	// A low-confidence result counts the same as an empty one.
	next = finvoke.ToolResult{Content: "weak match", Hits: 1, TopScore: 0.1}
	_, err = svc.Dispatch(ctx, "conv-low", "search_archive", args)
	assert.NoError(err)

	// Other conversations are unaffected.
	next = productive
	_, err = svc.Dispatch(ctx, "conv-other", "search_archive", args)
	assert.NoError(err)

	// Resetting the budget reopens the exhausted conversation.
	assert.NoError(svc.ResetBudget(ctx, "conv"))

	_, err = svc.Dispatch(ctx, "conv", "search_archive", args)
	assert.NoError(err)
}

func TestTotalCallBudget(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	svc := newTestService(t, func(cfg *finvoke.Config) {
		cfg.Guardrails.MaxToolCalls = 2
	})
	defer svc.Close()

	assert.NoError(svc.RegisterTool(ctx, fincalc.AnalyzeReturnsDescriptor()))

	args := map[string]any{"initial": 1000.0, "final": 1500.0, "years": 3.0}

	for i := 0; i < 2; i++ {
		_, err := svc.Dispatch(ctx, "conv", finvoke.ToolAnalyzeInvestmentReturns, args)
		assert.NoError(err)
	}

	_, err := svc.Dispatch(ctx, "conv", finvoke.ToolAnalyzeInvestmentReturns, args)
	assert.ErrorIs(err, finvoke.ErrBudgetExceeded)
}

func TestToolTimeout(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	svc := newTestService(t, nil)
	defer svc.Close()

	slow := finvoke.ToolDescriptor{
		Name:    "slow_lookup",
		Kind:    finvoke.ToolKindExternal,
		Timeout: finvoke.Duration(20 * time.Millisecond),
		Params: map[string]finvoke.ParamSpec{
			"query": {Type: finvoke.ParamTypeString, Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (finvoke.ToolResult, error) {
			select {
			case <-ctx.Done():
				return finvoke.ToolResult{}, ctx.Err()
			case <-time.After(time.Second):
				return finvoke.ToolResult{Content: "too late"}, nil
			}
		},
	}

	assert.NoError(svc.RegisterTool(ctx, slow))

	_, err := svc.Dispatch(ctx, "conv", "slow_lookup", map[string]any{"query": "q"})
	if assert.ErrorIs(err, finvoke.ErrToolExecution) {
		assert.Contains(err.Error(), "timed out")
		assert.Contains(err.Error(), "slow_lookup")
	}
}

func TestFailingRetrievalCountsAsUnproductive(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	svc := newTestService(t, func(cfg *finvoke.Config) {
		cfg.Guardrails.MaxUnproductiveSearches = 2
		cfg.Guardrails.MaxToolCalls = 100
	})
	defer svc.Close()

	broken := finvoke.ToolDescriptor{
		Name: "search_archive",
		Kind: finvoke.ToolKindRetrieval,
		Params: map[string]finvoke.ParamSpec{
			"query": {Type: finvoke.ParamTypeString, Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (finvoke.ToolResult, error) {
			return finvoke.ToolResult{}, errors.New("upstream index offline")
		},
	}

	assert.NoError(svc.RegisterTool(ctx, broken))

	args := map[string]any{"query": "anything"}

	// A retrieval tool that keeps failing must still trip the guardrail.
	for i := 0; i < 2; i++ {
		_, err := svc.Dispatch(ctx, "conv", "search_archive", args)
		assert.ErrorIs(err, finvoke.ErrToolExecution)
	}

	_, err := svc.Dispatch(ctx, "conv", "search_archive", args)
	assert.ErrorIs(err, finvoke.ErrBudgetExceeded)
}

func TestEmbeddingFailureIsRecoverable(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	svc := newTestService(t, func(cfg *finvoke.Config) {
		cfg.Guardrails.MaxUnproductiveSearches = 2
		cfg.Guardrails.MaxToolCalls = 100
	})
	defer svc.Close()

	// Whitespace-only queries cannot be embedded: a recoverable "no answer",
	// not a tool execution failure.
	for i := 0; i < 2; i++ {
		_, err := svc.Dispatch(ctx, "conv", finvoke.ToolSearchKnowledgeBase,
			map[string]any{"query": "   "})

		assert.ErrorIs(err, finvoke.ErrEmbedding)
		assert.NotErrorIs(err, finvoke.ErrToolExecution)
	}

	// Failed embeddings count as unproductive retrievals.
	_, err := svc.Dispatch(ctx, "conv", finvoke.ToolSearchKnowledgeBase,
		map[string]any{"query": "valid query"})

	assert.ErrorIs(err, finvoke.ErrBudgetExceeded)
}
