// Package keypath expands flattened key/value pairs into nested structures.
// Keys address into the structure with dots and brackets: "a.b" is field b
// of object a, and "a[0].b" or "a.0.b" is field b of the first element of
// array a. It is the decoding half of the common query-string convention
// "filters[0].order_by=desc".
package keypath

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// maxIndex bounds how large an array index a key may address.
const maxIndex = 1024

// Inflate expands the flat map into a nested structure of map[string]any,
// []any, and the given values. Keys are applied in sorted order, so the
// result is deterministic; when keys disagree about the shape of a node
// (for example "a" and "a.b" both present), later keys win. Top-level
// numeric keys are object fields, not array indices: the result is always
// an object.
//
// Array elements that are addressed past the current length pad the array
// with nils, so "a[2]=x" alone yields [nil, nil, x].
func Inflate(flat map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	root := make(map[string]any, len(flat))
	for _, key := range keys {
		segs, err := splitKey(key)
		if err != nil {
			return nil, err
		}
		child, err := setPath(root[segs[0]], segs[1:], flat[key])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		root[segs[0]] = child
	}
	return root, nil
}

// setPath writes value at the location addressed by segs within node,
// returning the updated node. Nodes of the wrong kind for a segment are
// replaced wholesale.
func setPath(node any, segs []string, value any) (any, error) {
	if len(segs) == 0 {
		return value, nil
	}
	seg := segs[0]
	if idx, ok := parseIndex(seg); ok {
		if idx > maxIndex {
			return nil, fmt.Errorf("array index %d exceeds limit %d", idx, maxIndex)
		}
		arr, _ := node.([]any)
		for len(arr) <= idx {
			arr = append(arr, nil)
		}
		child, err := setPath(arr[idx], segs[1:], value)
		if err != nil {
			return nil, err
		}
		arr[idx] = child
		return arr, nil
	}
	m, ok := node.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	child, err := setPath(m[seg], segs[1:], value)
	if err != nil {
		return nil, err
	}
	m[seg] = child
	return m, nil
}

// splitKey breaks a key into path segments: "a[0].b" and "a.0.b" both yield
// ["a", "0", "b"].
func splitKey(key string) ([]string, error) {
	if key == "" {
		return nil, fmt.Errorf("empty key")
	}
	var segs []string
	for _, part := range strings.Split(key, ".") {
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				if part == "" {
					return nil, fmt.Errorf("key %q has an empty segment", key)
				}
				segs = append(segs, part)
				break
			}
			closing := strings.IndexByte(part, ']')
			if closing < open {
				return nil, fmt.Errorf("key %q has unbalanced brackets", key)
			}
			if open > 0 {
				segs = append(segs, part[:open])
			}
			idx := part[open+1 : closing]
			if idx == "" {
				return nil, fmt.Errorf("key %q has an empty index", key)
			}
			segs = append(segs, idx)
			part = part[closing+1:]
			if part == "" {
				break
			}
			// allow chained indices like a[0][1]
			if part[0] != '[' {
				return nil, fmt.Errorf("key %q has trailing characters after bracket", key)
			}
		}
	}
	return segs, nil
}

// parseIndex reports whether seg addresses an array element, i.e. is all
// digits.
func parseIndex(seg string) (int, bool) {
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(seg)
	if err != nil {
		return 0, false
	}
	return n, true
}
