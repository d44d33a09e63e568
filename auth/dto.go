package auth

// LoginRequest is the login payload. Identifier is either the username or the email.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required" msg:"Please enter your username or email." example:"ada"`
	Password   string `json:"password" validate:"required" msg:"The password is mandatory" example:"Secret123"`
}

// LoginUser is the part of the account echoed back on login.
type LoginUser struct {
	Username string `json:"username" example:"ada"`
	Email    string `json:"email" example:"ada@example.com"`
}

// LoginResponse carries the bearer token for subsequent requests.
type LoginResponse struct {
	Msg   string    `json:"msg" example:"Login Ok"`
	User  LoginUser `json:"user"`
	Token string    `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}
