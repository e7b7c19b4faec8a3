package mcp

import "encoding/json"

// Tool describes a tool exposed by the gateway.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type request struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *protocolError  `json:"error"`
}

type protocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type listToolsResult struct {
	Tools []Tool `json:"tools"`
}

type callToolResult struct {
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"isError"`
}
