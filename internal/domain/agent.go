package domain

// AgentRole enumerates roles carried in agent access tokens. Accounts
// themselves live in the identity provider, not in this service.
type AgentRole string

const (
	AgentRoleAgent AgentRole = "AGENT"
	AgentRoleAdmin AgentRole = "ADMIN"
)
