package adapter

import (
	"bytes"
	"encoding/json"
	"regexp"
)

type specFormat int

const (
	formatUnknown specFormat = iota
	formatOpenAPI
	formatGraphQL
	formatEndpoints
)

var (
	openapiKeyRe  = regexp.MustCompile(`(?m)^\s*"?openapi"?\s*[:=]\s*"?3`)
	graphqlTypeRe = regexp.MustCompile(`(?m)^\s*(type\s+(Query|Mutation)\b|schema\s*\{)`)
)

// detectFormat sniffs the description content. Detection is intentionally
// shallow; the per-format parsers do the real validation.
func detectFormat(data []byte) specFormat {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return formatUnknown
	}

	if openapiKeyRe.Match(trimmed) {
		return formatOpenAPI
	}

	if graphqlTypeRe.Match(trimmed) {
		return formatGraphQL
	}

	// Endpoint listing: a JSON object with an "endpoints" array.
	if trimmed[0] == '{' {
		var probe struct {
			Endpoints json.RawMessage `json:"endpoints"`
		}
		if err := json.Unmarshal(trimmed, &probe); err == nil && len(probe.Endpoints) > 0 {
			return formatEndpoints
		}
	}

	return formatUnknown
}
