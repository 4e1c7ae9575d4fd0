package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// Record is one compiled JSON Schema document and the name it is reported under.
type Record struct {
	Name   string
	Path   string
	Schema *jsonschema.Schema
}

// DeriveName turns a schema title into a metric-safe name: lower case, spaces as hyphens.
func DeriveName(title string) string {
	return strings.ReplaceAll(strings.ToLower(title), " ", "-")
}

// Accepts reports whether doc validates against the record's schema. When it
// does not, the returned slice lists the evaluation failures.
func (r Record) Accepts(doc any) (bool, []string) {
	result := r.Schema.Validate(doc)
	if result.IsValid() {
		return true, nil
	}

	causes := make([]string, 0, len(result.Errors))
	for path, evalErr := range result.Errors {
		causes = append(causes, fmt.Sprintf("%s: %s", path, evalErr.Error()))
	}
	sort.Strings(causes)
	return false, causes
}

func (r Record) String() string {
	return fmt.Sprintf("SchemaRecord[name='%s']", r.Name)
}
