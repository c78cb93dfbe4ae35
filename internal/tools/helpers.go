package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not numeric. JSON numbers arrive
// as float64; numeric strings are accepted too.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return defaultVal
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return defaultVal
	}
	return v
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return defaultVal
	}
	v, err := cast.ToBoolE(raw)
	if err != nil {
		return defaultVal
	}
	return v
}
