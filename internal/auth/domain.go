package auth

import "time"

// User is an application account. Operators only; there is no tenant concept.
type User struct {
	ID           int64
	NamaLengkap  string
	Email        string
	NoHP         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// RegisterRequest carries a new account registration.
type RegisterRequest struct {
	NamaLengkap string `json:"nama_lengkap" validate:"required,min=3,max=200"`
	Email       string `json:"email" validate:"required,email"`
	NoHP        string `json:"no_hp" validate:"omitempty,max=20"`
	Password    string `json:"password" validate:"required,min=8"`
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token       string `json:"token"`
	NamaLengkap string `json:"nama_lengkap"`
	Email       string `json:"email"`
}
