package classifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"topicmon/internal/constants"
	"topicmon/pkg/cel"
	"topicmon/pkg/jsoncodec"
)

var (
	ErrInvalidExpression = errors.New("invalid breakdown expression")
	ErrPayloadNotJSON    = errors.New("payload is not JSON")
	ErrPathNotFound      = errors.New("breakdown path not found")
	ErrTypeMismatch      = errors.New("breakdown value is not a scalar")
)

// Extractor pulls the user breakdown value out of a raw payload.
type Extractor interface {
	Extract(ctx context.Context, text string) (string, error)
	Expression() string
}

type BreakdownConfig struct {
	Expression string
	Language   string
}

func (c BreakdownConfig) Configured() bool {
	return c.Expression != ""
}

// NewExtractor compiles cfg.Expression in the configured language.
func NewExtractor(cfg BreakdownConfig) (Extractor, error) {
	switch cfg.Language {
	case "", constants.BreakdownLanguageJSONPath:
		return newJSONPathExtractor(cfg.Expression)
	case constants.BreakdownLanguageCEL:
		return newCELExtractor(cfg.Expression)
	default:
		return nil, fmt.Errorf("%w: unsupported language %q", ErrInvalidExpression, cfg.Language)
	}
}

type jsonPathExtractor struct {
	expression string
	path       jp.Expr
}

func newJSONPathExtractor(expression string) (*jsonPathExtractor, error) {
	path, err := jp.ParseString(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return &jsonPathExtractor{expression: expression, path: path}, nil
}

func (e *jsonPathExtractor) Expression() string {
	return e.expression
}

func (e *jsonPathExtractor) Extract(_ context.Context, text string) (string, error) {
	doc, err := oj.ParseString(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayloadNotJSON, err)
	}

	results := e.path.Get(doc)
	switch len(results) {
	case 0:
		return "", ErrPathNotFound
	case 1:
		return stringify(results[0])
	default:
		return "", fmt.Errorf("%w: %d results", ErrTypeMismatch, len(results))
	}
}

type celExtractor struct {
	program *cel.Program
}

func newCELExtractor(expression string) (*celExtractor, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}
	program, err := evaluator.CompileExpression(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return &celExtractor{program: program}, nil
}

func (e *celExtractor) Expression() string {
	return e.program.Expression()
}

func (e *celExtractor) Extract(ctx context.Context, text string) (string, error) {
	doc, err := jsoncodec.ParseString(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayloadNotJSON, err)
	}

	value, err := e.program.Evaluate(ctx, doc, "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPathNotFound, err)
	}
	return stringify(value)
}

// stringify accepts strings, numbers and booleans. Anything else, including
// null, is a type mismatch.
func stringify(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrTypeMismatch, value)
	}
}
