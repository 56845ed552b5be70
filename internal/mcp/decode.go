package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// decode binds a tool call's loose argument map onto a request struct by
// round-tripping it through its JSON tags. A value of the wrong JSON type
// (an "id" sent as a number, say) comes back as an error naming the tool
// arguments, which handlers report as INVALID_REQUEST.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var in T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return in, fmt.Errorf("encode tool arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return in, nil
}
