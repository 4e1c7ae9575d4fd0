// Package topic maps physical broker topic names to logical ones.
package topic

import "regexp"

var partitionSuffix = regexp.MustCompile(`-partition-\d+`)

// Normalize strips the "-partition-<N>" suffix the broker appends to
// partitioned topics when groupPartitioned is set. An empty name stays empty.
func Normalize(raw string, groupPartitioned bool) string {
	if raw == "" || !groupPartitioned {
		return raw
	}
	return partitionSuffix.ReplaceAllString(raw, "")
}

// Normalizer captures the grouping flag so callers do not thread it around.
type Normalizer struct {
	GroupPartitioned bool
}

func (n Normalizer) Normalize(raw string) string {
	return Normalize(raw, n.GroupPartitioned)
}
