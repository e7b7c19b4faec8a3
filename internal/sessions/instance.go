// Package sessions caches per-user agent runtime instances with LRU
// eviction, releasing each instance's gateway handle exactly once.
package sessions

import (
	"context"
	"sync"

	"github.com/piliapp/pili/internal/agents"
	"github.com/piliapp/pili/internal/mcp"
)

// GatewayHandle is the releasable connection an instance owns.
type GatewayHandle interface {
	Close()
}

// Instance is a cached per-user runtime with its bound gateway handle.
type Instance struct {
	UserID  string
	Runtime *agents.Runtime

	gateway   GatewayHandle
	closeOnce sync.Once
}

// NewInstance binds a runtime to the gateway handle it owns.
func NewInstance(userID string, runtime *agents.Runtime, gateway GatewayHandle) *Instance {
	return &Instance{
		UserID:  userID,
		Runtime: runtime,
		gateway: gateway,
	}
}

// Close releases the gateway handle. Safe to call more than once.
func (i *Instance) Close() {
	i.closeOnce.Do(func() {
		if i.gateway != nil {
			i.gateway.Close()
		}
	})
}

// gatewayAdapter exposes a user-scoped gateway client as the runtime's tool
// gateway.
type gatewayAdapter struct {
	client *mcp.UserClient
}

func (g gatewayAdapter) ListTools(ctx context.Context) ([]agents.ToolSpec, error) {
	tools, err := g.client.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	specs := make([]agents.ToolSpec, 0, len(tools))
	for _, tool := range tools {
		specs = append(specs, agents.ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}
	return specs, nil
}

func (g gatewayAdapter) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	return g.client.CallTool(ctx, name, arguments)
}
