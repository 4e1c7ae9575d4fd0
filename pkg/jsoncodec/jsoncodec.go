// Package jsoncodec is the single JSON entry point for payload inspection.
package jsoncodec

import (
	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

// ParseString decodes text into a generic document (maps, slices, float64,
// string, bool, nil). Trailing data after the first value is an error.
func ParseString(text string) (any, error) {
	var doc any
	if err := defaultConfig.UnmarshalFromString(text, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}
