// Package schema loads JSON Schema documents from disk and matches parsed
// payloads against them.
//
// A Registry is built once at startup and never mutated afterwards, so Match
// may be called from any number of goroutines without locking.
package schema

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kaptinlin/jsonschema"

	"topicmon/internal/logger"
	apperrors "topicmon/pkg/errors"
)

type Registry struct {
	records []Record
	logger  logger.Logger
}

// NewRegistry builds a registry from already compiled records, keeping their order.
func NewRegistry(log logger.Logger, records ...Record) *Registry {
	if log == nil {
		log = logger.NopLogger()
	}
	out := make([]Record, len(records))
	copy(out, records)
	return &Registry{records: out, logger: log}
}

// Load walks dir recursively in lexical order and compiles every non-hidden
// regular file. Files that cannot be read, compiled or named are skipped with
// a warning. An empty dir yields an empty registry.
func Load(dir string, log logger.Logger) (*Registry, error) {
	if log == nil {
		log = logger.NopLogger()
	}

	if dir == "" {
		log.Infow("No JSON schema directory defined, schema matching disabled")
		return NewRegistry(log), nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnw("JSON schema directory does not exist, schema matching disabled",
				"dir", dir,
			)
			return NewRegistry(log), nil
		}
		return nil, apperrors.ErrSchemaDirInvalid.WithCause(err).WithDetail("dir", dir)
	}
	if !info.IsDir() {
		return nil, apperrors.ErrSchemaDirInvalid.
			WithDetail("message", fmt.Sprintf("%s is not a directory", dir)).
			WithDetail("dir", dir)
	}

	var records []Record
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnw("Cannot access path while loading JSON schemas",
				"path", path,
				"error", err,
			)
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || isHidden(d.Name()) {
			return nil
		}

		record, err := loadRecord(path)
		if err != nil {
			log.Warnw("Cannot load JSON schema",
				"path", absPath(path),
				"error", err,
			)
			return nil
		}
		records = append(records, record)
		return nil
	})
	if walkErr != nil {
		return nil, apperrors.ErrSchemaDirInvalid.WithCause(walkErr).WithDetail("dir", dir)
	}

	registry := NewRegistry(log, records...)
	log.Infow("JSON schemas loaded",
		"dir", dir,
		"count", registry.Len(),
		"schemas", registry.Names(),
	)
	return registry, nil
}

func loadRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("read schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiled, err := compiler.Compile(data)
	if err != nil {
		return Record{}, fmt.Errorf("compile schema: %w", err)
	}

	if compiled.Title == nil || *compiled.Title == "" {
		return Record{}, fmt.Errorf("schema has no title")
	}

	return Record{
		Name:   DeriveName(*compiled.Title),
		Path:   path,
		Schema: compiled,
	}, nil
}

// Match returns the first record, in load order, whose schema accepts doc.
func (r *Registry) Match(ctx context.Context, doc any) (*Record, bool) {
	if r == nil || len(r.records) == 0 {
		return nil, false
	}

	for i := range r.records {
		record := &r.records[i]
		ok, causes := record.Accepts(doc)
		if ok {
			r.logger.DebugwCtx(ctx, "Json is valid for schema",
				"schema", record.Name,
			)
			return record, true
		}
		r.logger.DebugwCtx(ctx, "Json is not valid for schema",
			"schema", record.Name,
			"causes", causes,
		)
	}
	return nil, false
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.records))
	for i, rec := range r.records {
		names[i] = rec.Name
	}
	return names
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
