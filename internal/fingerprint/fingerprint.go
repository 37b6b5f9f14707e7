// Package fingerprint computes deterministic content hashes over field maps.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Of hashes the given fields, skipping any key listed in ignore.
// encoding/json writes map keys in sorted order, so insertion order never
// affects the result.
func Of(fields map[string]any, ignore ...string) string {
	subset := fields
	if len(ignore) > 0 {
		subset = make(map[string]any, len(fields))
		skip := make(map[string]struct{}, len(ignore))
		for _, k := range ignore {
			skip[k] = struct{}{}
		}
		for k, v := range fields {
			if _, ok := skip[k]; ok {
				continue
			}
			subset[k] = v
		}
	}
	return Value(subset)
}

// Value hashes any JSON-encodable value.
func Value(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// unencodable values still need a stable hash
		b = []byte(fmt.Sprintf("%#v", v))
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

// Canonical returns the canonical encoding of v, usable as an exact map key.
func Canonical(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}

// Equal reports whether two values encode identically.
func Equal(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}
