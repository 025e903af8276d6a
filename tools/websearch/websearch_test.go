package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSearchAssemblesSummary(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("what is an index fund", r.URL.Query().Get("q"))
		assert.Equal("json", r.URL.Query().Get("format"))
		assert.Equal("1", r.URL.Query().Get("no_html"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"AbstractText": "An index fund tracks a market index.",
			"Answer": "A passive investment vehicle.",
			"RelatedTopics": [
				{"Text": "S&P 500 index funds"},
				{"Text": "Expense ratios"},
				{"Text": "Passive investing"},
				{"Text": "This fourth topic is dropped"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	content, err := client.Search(context.Background(), "what is an index fund")
	assert.NoError(err)

	assert.Contains(content, "Summary: An index fund tracks a market index.")
	assert.Contains(content, "Answer: A passive investment vehicle.")
	assert.Contains(content, "Related: S&P 500 index funds | Expense ratios | Passive investing")
	assert.NotContains(content, "fourth topic")
}

func TestSearchNoResultsFallback(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"AbstractText": "", "Answer": "", "RelatedTopics": []}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	content, err := client.Search(context.Background(), "xyzzy")
	assert.NoError(err)
	assert.Contains(content, "no detailed results found for: xyzzy")
}

func TestSearchSkipsEmptyTopics(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"RelatedTopics": [{"Text": ""}, {"Text": "Only topic"}]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	content, err := client.Search(context.Background(), "query")
	assert.NoError(err)
	assert.Contains(content, "Related: Only topic")
}

func TestSearchStatusError(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	_, err := client.Search(context.Background(), "query")
	assert.ErrorIs(err, ErrUnavailable)
}

func TestSearchMalformedBody(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	_, err := client.Search(context.Background(), "query")
	assert.ErrorIs(err, ErrUnavailable)
}

func TestSearchTimeout(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})

	_, err := client.Search(context.Background(), "query")
	assert.ErrorIs(err, ErrUnavailable)
}

func TestSearchUnreachable(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	_, err := client.Search(context.Background(), "query")
	assert.ErrorIs(err, ErrUnavailable)
}

func TestMarketDataPlaceholder(t *testing.T) {
	assert := assert.New(t)

	client := NewClient(Config{})

	content, err := client.MarketData(context.Background(), "AAPL")
	assert.NoError(err)
	assert.Contains(content, "Market data retrieval for AAPL")
	assert.Contains(content, "demo environment")
}

func TestSearchHandler(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Answer": "42"}`))
	}))
	defer srv.Close()

	desc := SearchDescriptor(NewClient(Config{BaseURL: srv.URL}))

	result, err := desc.Handler(context.Background(), map[string]any{"query": "anything"})
	assert.NoError(err)
	assert.Contains(result.Content, "Answer: 42")
}
