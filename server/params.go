package server

import (
	"fmt"
)

// unify merges path and query parameters into one map. A name used as both is a routing bug and
// is rejected; a repeated query parameter keeps its first value.
func unify(path map[string]string, query map[string][]string) (map[string]string, error) {
	params := make(map[string]string, len(path)+len(query))
	for k, v := range path {
		params[k] = v
	}
	for key, values := range query {
		if _, exists := path[key]; exists {
			return nil, fmt.Errorf("%w: '%s' is used as both a path and a query parameter", errBadRequest, key)
		}
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params, nil
}
