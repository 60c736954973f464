package orchestrator

import (
	"crypto/rand"
	"encoding/json"
	"io"
	"strconv"
	"strings"
)

func jsonUnmarshal(data string, v any) error {
	return json.Unmarshal([]byte(data), v)
}

func ulidEntropy() io.Reader { return rand.Reader }

// versionAtLeast compares two dotted "major.minor.patch" version
// strings and reports whether v >= min (spec.md §4.6's BUNDLE_ANNOUNCEMENT
// semver gate). Missing or malformed components compare as 0.
func versionAtLeast(v, min string) bool {
	vp := versionParts(v)
	mp := versionParts(min)
	for i := 0; i < 3; i++ {
		if vp[i] != mp[i] {
			return vp[i] > mp[i]
		}
	}
	return true
}

func versionParts(v string) [3]int {
	var out [3]int
	parts := strings.SplitN(v, ".", 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err == nil {
			out[i] = n
		}
	}
	return out
}
