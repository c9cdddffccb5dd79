package model

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the upstream bearer token
type LoginResponse struct {
	Token string `json:"token"`
}
