package models

// Keys of the persisted client state. Nothing else survives a restart.
const (
	SessionTokenKey = "token"
	SessionRolesKey = "roles"
)

// Session is the locally stored authentication state.
type Session struct {
	Token string `json:"-"`
	Roles string `json:"roles,omitempty"`
}

// LoginResponse is the remote auth API answer to a login.
type LoginResponse struct {
	StatusCode     int    `json:"statusCode"`
	Error          string `json:"error,omitempty"`
	Message        string `json:"message,omitempty"`
	Token          string `json:"token,omitempty"`
	RefreshToken   string `json:"refreshToken,omitempty"`
	ExpirationTime string `json:"expirationTime,omitempty"`
	Roles          string `json:"roles,omitempty"`
}

// RegisterRequest is the payload sent to the remote register endpoint.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StatusResponse is the generic remote answer carrying a status code.
type StatusResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
}
