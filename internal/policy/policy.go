package policy

type Role string

const (
	RoleLocal Role = "local"
)

type User struct {
	ID              string
	Role            Role
	AllowedToolsets []string
	AllowedTools    []string
}

type Authorizer struct {
}

func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

func (a *Authorizer) Authenticate(apiKey string) (User, error) {
	_ = apiKey
	return User{ID: "local", Role: RoleLocal}, nil
}

func (a *Authorizer) AuthorizeTool(user User, toolsetID, toolName string) error {
	_ = user
	_ = toolsetID
	_ = toolName
	return nil
}
