package models

// Roles carried in access tokens
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

// Scope is the caller's visibility over leads. Admins see everything, agents
// see only leads assigned to them.
type Scope struct {
	Role   string
	UserID string
}

// AdminScope returns an unrestricted scope for the given admin.
func AdminScope(userID string) Scope {
	return Scope{Role: RoleAdmin, UserID: userID}
}

// AgentScope returns a scope restricted to leads assigned to agentID.
func AgentScope(agentID string) Scope {
	return Scope{Role: RoleAgent, UserID: agentID}
}

// IsAdmin reports whether the scope is unrestricted.
func (s Scope) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// CanSee reports whether a lead with the given assignee is visible in this scope.
func (s Scope) CanSee(assignedTo *string) bool {
	if s.IsAdmin() {
		return true
	}
	return assignedTo != nil && *assignedTo == s.UserID
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
