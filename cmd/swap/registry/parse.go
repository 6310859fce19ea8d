package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"
)

var ErrRootNotObject = errors.New("root must be a JSON object")

// parsedEntry is one key of a replacement file with its usable paths.
type parsedEntry struct {
	key   string
	paths []string
}

// parseReplacements reads a replacement file body. Values may be a string, an
// array of strings or null. Comments and trailing commas are accepted. Entries
// of any other shape are reported through warn and skipped.
func parseReplacements(data []byte, warn func(key, msg string)) ([]parsedEntry, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if !gjson.ValidBytes(std) {
		return nil, errors.New("invalid JSON")
	}

	root := gjson.ParseBytes(std)
	if !root.IsObject() {
		return nil, ErrRootNotObject
	}

	var out []parsedEntry
	root.ForEach(func(k, v gjson.Result) bool {
		key := strings.TrimSpace(k.String())
		if key == "" {
			warn(k.String(), "empty key")
			return true
		}

		var paths []string
		switch {
		case v.Type == gjson.Null:
			return true
		case v.Type == gjson.String:
			if p := strings.TrimSpace(v.Str); p != "" {
				paths = append(paths, p)
			}
		case v.IsArray():
			for _, item := range v.Array() {
				if item.Type != gjson.String {
					warn(key, "array item is not a string: "+item.Raw)
					continue
				}
				if p := strings.TrimSpace(item.Str); p != "" {
					paths = append(paths, p)
				}
			}
		default:
			warn(key, "unsupported value, use a string or string array")
			return true
		}

		if len(paths) > 0 {
			out = append(out, parsedEntry{key: key, paths: paths})
		}
		return true
	})
	return out, nil
}
