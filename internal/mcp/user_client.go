package mcp

import "context"

// UserClient scopes a gateway client to a single user by injecting the
// user_id argument on every tool call that does not already carry one.
type UserClient struct {
	client *Client
	userID string
}

// NewUserClient wraps a gateway client for the specified user.
func NewUserClient(client *Client, userID string) *UserClient {
	return &UserClient{
		client: client,
		userID: userID,
	}
}

// ListTools retrieves the tool definitions published by the gateway.
func (u *UserClient) ListTools(ctx context.Context) ([]Tool, error) {
	return u.client.ListTools(ctx)
}

// CallTool invokes a named tool, injecting the scoped user_id when absent.
func (u *UserClient) CallTool(ctx context.Context, name string, arguments map[string]any) (string, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}
	if _, ok := arguments["user_id"]; !ok {
		arguments["user_id"] = u.userID
	}
	return u.client.CallTool(ctx, name, arguments)
}

// Close releases the underlying client's connections.
func (u *UserClient) Close() {
	u.client.Close()
}
