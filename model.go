package finvoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/finvoke/finvoke/embedding"
	"github.com/finvoke/finvoke/knowledge"
	"github.com/finvoke/finvoke/vector"
)

var (
	// ErrIngest and ErrEmbedding originate in the knowledge store; they are
	// re-exported so transports can map them without importing knowledge.
	ErrIngest    = knowledge.ErrIngest
	ErrEmbedding = knowledge.ErrEmbedding

	ErrUnknownTool     = errors.New("unknown tool")
	ErrDuplicateTool   = errors.New("tool already registered")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrBudgetExceeded  = errors.New("tool call budget exceeded")
	ErrToolExecution   = errors.New("tool execution failed")
	ErrInvalidToolName = errors.New("invalid tool name")
)

// Kind maps an error to a stable machine-readable kind for the transports.
// The hosted agent configuration branches on these values, so they must not
// change between releases.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrIngest):
		return "ingest_failed"
	case errors.Is(err, ErrEmbedding):
		return "embedding_failed"
	case errors.Is(err, ErrUnknownTool):
		return "unknown_tool"
	case errors.Is(err, ErrDuplicateTool):
		return "duplicate_tool"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrBudgetExceeded):
		return "budget_exceeded"
	case errors.Is(err, ErrToolExecution):
		return "tool_execution_failed"
	default:
		return "internal"
	}
}

type ContextKey string

const (
	// ConversationID keys the per-conversation call budget. Supplied by the
	// surrounding service; the core stores no other conversation data.
	ConversationID ContextKey = "conversation_id"
)

type Config struct {
	Knowledge  KnowledgeConfig `yaml:"knowledge"`
	Vector     vector.Config   `yaml:"vector"`
	Guardrails GuardrailConfig `yaml:"guardrails"`
	Tools      ToolsConfig     `yaml:"tools"`
}

type KnowledgeConfig struct {
	Seed      bool             `yaml:"seed"`
	SearchK   int              `yaml:"searchK"`
	Embedding embedding.Config `yaml:"embedding"`
}

type GuardrailConfig struct {
	MaxToolCalls            int     `yaml:"maxToolCalls"`
	MaxUnproductiveSearches int     `yaml:"maxUnproductiveSearches"`
	SimilarityFloor         float64 `yaml:"similarityFloor"`
}

type ToolsConfig struct {
	Timeout   Duration        `yaml:"timeout"`
	WebSearch WebSearchConfig `yaml:"webSearch"`
}

type WebSearchConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

const (
	DefaultSearchK                 = 3
	DefaultMaxToolCalls            = 10
	DefaultMaxUnproductiveSearches = 3
	DefaultSimilarityFloor         = 0.3
	DefaultToolTimeout             = 15 * time.Second
)

// ApplyDefaults fills zero-valued guardrail and tool settings.
func (cfg *Config) ApplyDefaults() {
	if cfg.Knowledge.SearchK <= 0 {
		cfg.Knowledge.SearchK = DefaultSearchK
	}

	if cfg.Guardrails.MaxToolCalls <= 0 {
		cfg.Guardrails.MaxToolCalls = DefaultMaxToolCalls
	}

	if cfg.Guardrails.MaxUnproductiveSearches <= 0 {
		cfg.Guardrails.MaxUnproductiveSearches = DefaultMaxUnproductiveSearches
	}

	if cfg.Guardrails.SimilarityFloor <= 0 {
		cfg.Guardrails.SimilarityFloor = DefaultSimilarityFloor
	}

	if cfg.Tools.Timeout.Duration() <= 0 {
		cfg.Tools.Timeout = Duration(DefaultToolTimeout)
	}

	if cfg.Tools.WebSearch.Timeout.Duration() <= 0 {
		cfg.Tools.WebSearch.Timeout = cfg.Tools.Timeout
	}
}

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	str := d.Duration().String()
	return json.Marshal(str)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

type ParamType string

const (
	ParamTypeString  ParamType = "string"
	ParamTypeNumber  ParamType = "number"
	ParamTypeInteger ParamType = "integer"
	ParamTypeBoolean ParamType = "boolean"
)

type ParamSpec struct {
	Type        ParamType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required" yaml:"required"`
}

type ToolKind string

const (
	// ToolKindRetrieval marks tools whose results feed the unproductive-call
	// guardrail counter.
	ToolKindRetrieval ToolKind = "retrieval"
	ToolKindCompute   ToolKind = "compute"
	ToolKindExternal  ToolKind = "external"
)

// Handler executes a tool call. Arguments arrive pre-validated against the
// descriptor's parameter schema.
type Handler func(ctx context.Context, args map[string]any) (ToolResult, error)

type ToolDescriptor struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Kind        ToolKind             `json:"kind"`
	Params      map[string]ParamSpec `json:"params,omitempty"`
	Timeout     Duration             `json:"timeout,omitempty"`

	Handler Handler `json:"-" yaml:"-"`
}

// ToolResult carries the text returned to the agent. Hits and TopScore are
// populated by retrieval tools and drive the productivity tracking.
type ToolResult struct {
	Content  string  `json:"content"`
	Hits     int     `json:"hits,omitempty"`
	TopScore float64 `json:"top_score,omitempty"`
}

// ValidateArguments checks args against the descriptor's parameter schema.
// Values are never coerced: a string holding a number is still a string.
func (desc ToolDescriptor) ValidateArguments(args map[string]any) error {
	for name, spec := range desc.Params {
		value, ok := args[name]
		if !ok {
			if spec.Required {
				return fmt.Errorf("%w: missing required parameter %q", ErrInvalidArgument, name)
			}
			continue
		}

		if err := checkType(name, spec.Type, value); err != nil {
			return err
		}
	}

	for name := range args {
		if _, ok := desc.Params[name]; !ok {
			return fmt.Errorf("%w: unexpected parameter %q", ErrInvalidArgument, name)
		}
	}

	return nil
}

func checkType(name string, t ParamType, value any) error {
	switch t {
	case ParamTypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: parameter %q must be a string", ErrInvalidArgument, name)
		}

	case ParamTypeNumber:
		if !isNumeric(value) {
			return fmt.Errorf("%w: parameter %q must be a number", ErrInvalidArgument, name)
		}

	case ParamTypeInteger:
		f, ok := asFloat(value)
		if !ok || f != float64(int64(f)) {
			return fmt.Errorf("%w: parameter %q must be an integer", ErrInvalidArgument, name)
		}

	case ParamTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: parameter %q must be a boolean", ErrInvalidArgument, name)
		}

	default:
		return fmt.Errorf("%w: parameter %q has unsupported type %q", ErrInvalidArgument, name, t)
	}

	return nil
}

func isNumeric(value any) bool {
	_, ok := asFloat(value)
	return ok
}

// asFloat accepts the numeric shapes produced by JSON decoding and by Go
// callers in tests.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Number extracts a numeric argument previously validated as number/integer.
func Number(args map[string]any, name string) (float64, bool) {
	value, ok := args[name]
	if !ok {
		return 0, false
	}

	return asFloat(value)
}

// String extracts a string argument previously validated as string.
func String(args map[string]any, name string) (string, bool) {
	value, ok := args[name]
	if !ok {
		return "", false
	}

	str, ok := value.(string)
	return str, ok
}
