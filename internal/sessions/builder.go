package sessions

import (
	"context"
	"log/slog"

	"github.com/piliapp/pili/internal/agents"
	"github.com/piliapp/pili/internal/config"
	"github.com/piliapp/pili/internal/mcp"
)

// DefaultBuilder returns a BuildFunc that constructs the standard agent
// graph for each user: a fresh gateway client, tool bindings from the
// gateway's published list, and a runtime over the shared completion client.
func DefaultBuilder(mcpCfg *config.MCPConfig, sessCfg *config.SessionsConfig, llmCfg *config.LLMConfig, completions agents.CompletionClient, logger *slog.Logger) BuildFunc {
	return func(userID string) (*Instance, error) {
		client := mcp.NewClient(mcpCfg, logger)
		userClient := mcp.NewUserClient(client, userID)

		ctx, cancel := context.WithTimeout(context.Background(), mcpCfg.TimeoutDuration())
		defer cancel()

		var toolNames []string
		tools, err := userClient.ListTools(ctx)
		if err != nil {
			logger.Warn("tool listing failed at session build, starting degraded", "user_id", userID, "error", err)
		}
		for _, tool := range tools {
			toolNames = append(toolNames, tool.Name)
		}

		registry, err := agents.DefaultRegistry(toolNames, toolNames)
		if err != nil {
			client.Close()
			return nil, err
		}
		registry.SetPreferred(sessCfg.DefaultAgent)

		runtime := agents.NewRuntime(registry, completions, gatewayAdapter{client: userClient}, agents.Options{
			MaxSteps:     sessCfg.MaxSteps,
			Finalize:     llmCfg.FinalizePass,
			ReturnDirect: sessCfg.ReturnDirect,
		}, logger)
		runtime.AddLocalTool(agents.NewQuickResponseTool())

		return NewInstance(userID, runtime, client), nil
	}
}
