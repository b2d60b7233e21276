package entity

// User is the authenticated account as reported by /users/me.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}
