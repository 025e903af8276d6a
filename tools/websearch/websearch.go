// Package websearch wraps the DuckDuckGo Instant Answer API behind the tool
// contract, with a bounded timeout and normalized failures.
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finvoke/finvoke"
)

const DefaultBaseURL = "https://api.duckduckgo.com/"

var ErrUnavailable = errors.New("web search unavailable")

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type instantAnswer struct {
	AbstractText  string         `json:"AbstractText"`
	Answer        string         `json:"Answer"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

type relatedTopic struct {
	Text string `json:"Text"`
}

// Search queries the instant-answer API and assembles a text summary from
// the abstract, direct answer and up to three related topics.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var answer instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var parts []string

	if answer.AbstractText != "" {
		parts = append(parts, "Summary: "+answer.AbstractText)
	}

	if answer.Answer != "" {
		parts = append(parts, "Answer: "+answer.Answer)
	}

	var topics []string
	for _, topic := range answer.RelatedTopics {
		if topic.Text == "" {
			continue
		}

		topics = append(topics, topic.Text)
		if len(topics) == 3 {
			break
		}
	}

	if len(topics) > 0 {
		parts = append(parts, "Related: "+strings.Join(topics, " | "))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("Search completed but no detailed results found for: %s. "+
			"For real-time market data, please check financial websites like Yahoo Finance or Bloomberg.", query), nil
	}

	return strings.Join(parts, "\n\n"), nil
}

// MarketData is a placeholder until a market data provider is integrated;
// it returns guidance toward live data sources.
// TODO: integrate a real quote API (Alpha Vantage or Twelve Data) once an
// API key ships with the deployment config.
func (c *Client) MarketData(ctx context.Context, symbol string) (string, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Market data retrieval for %s:\n\n", symbol)
	sb.WriteString("Note: This is a demo environment. For real-time market data, please:\n")
	sb.WriteString("1. Visit financial websites like Yahoo Finance, Bloomberg, or MarketWatch\n")
	sb.WriteString("2. Use your brokerage platform's market data tools\n")
	sb.WriteString("3. Check cryptocurrency exchanges for crypto prices\n\n")
	sb.WriteString("To enable live market data, configure a financial data API key in the settings.")

	return sb.String(), nil
}

func SearchDescriptor(c *Client) finvoke.ToolDescriptor {
	return finvoke.ToolDescriptor{
		Name:        finvoke.ToolSearchWeb,
		Description: "Search the web for external information like current market data, news, or information not available in the internal knowledge base. Use this for real-time data or general information.",
		Kind:        finvoke.ToolKindExternal,
		Params: map[string]finvoke.ParamSpec{
			"query": {
				Type:        finvoke.ParamTypeString,
				Description: "The search query",
				Required:    true,
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (finvoke.ToolResult, error) {
			query, _ := finvoke.String(args, "query")

			content, err := c.Search(ctx, query)
			if err != nil {
				return finvoke.ToolResult{}, err
			}

			return finvoke.ToolResult{Content: content}, nil
		},
	}
}

func MarketDataDescriptor(c *Client) finvoke.ToolDescriptor {
	return finvoke.ToolDescriptor{
		Name:        finvoke.ToolGetMarketData,
		Description: "Get market data for a stock or cryptocurrency symbol.",
		Kind:        finvoke.ToolKindExternal,
		Params: map[string]finvoke.ParamSpec{
			"symbol": {
				Type:        finvoke.ParamTypeString,
				Description: "Ticker symbol, e.g. AAPL or BTC",
				Required:    true,
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (finvoke.ToolResult, error) {
			symbol, _ := finvoke.String(args, "symbol")

			content, err := c.MarketData(ctx, symbol)
			if err != nil {
				return finvoke.ToolResult{}, err
			}

			return finvoke.ToolResult{Content: content}, nil
		},
	}
}
