package wire

// TokenResponse is returned by the token endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"id_token"`
}

// UpdateTextRequest replaces the result text of a finished job.
type UpdateTextRequest struct {
	Text string `json:"text"`
}
