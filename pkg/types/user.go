package types

import "time"

// UserRole represents the two account roles in the system
type UserRole string

const (
	RolePatient UserRole = "patient"
	RoleDoctor  UserRole = "doctor"
)

// User represents an account. Email is stored lower-cased and is unique.
// The reset fields hold the state of an in-flight forgot-password flow
// and are cleared after a successful reset.
type User struct {
	ID            string     `json:"id" db:"id"`
	Email         string     `json:"email" db:"email"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	Role          UserRole   `json:"role" db:"role"`
	License       string     `json:"license,omitempty" db:"license"`
	ResetCode     string     `json:"-" db:"reset_code"`
	ResetExpires  *time.Time `json:"-" db:"reset_expires"`
	ResetVerified bool       `json:"-" db:"reset_verified"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// RegisterRequest represents user registration data
type RegisterRequest struct {
	Email    string   `json:"email" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Role     UserRole `json:"role" binding:"required"`
	FullName string   `json:"fullName"`
	// Fullname mirrors the legacy payload key; FullName wins when both are set.
	Fullname string `json:"fullname"`
	License  string `json:"license"`
}

// DisplayName resolves the two full-name payload aliases
func (r *RegisterRequest) DisplayName() string {
	if r.FullName != "" {
		return r.FullName
	}
	return r.Fullname
}

// Credentials represents login credentials
type Credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthUser is the role-shaped account view returned by register/login/me
type AuthUser struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
	FullName string   `json:"fullname"`
	CardID   string   `json:"cardId,omitempty"`
	QRCodeID string   `json:"qrCodeId,omitempty"`
}

// AuthResponse is the register/login response envelope
type AuthResponse struct {
	Token string    `json:"token"`
	Role  UserRole  `json:"role"`
	User  *AuthUser `json:"user"`
}

// ForgotPasswordRequest carries the email of the account to reset
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyResetCodeRequest carries the emailed 6-digit code
type VerifyResetCodeRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// ResetPasswordRequest carries the replacement password
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ChangePasswordRequest carries an authenticated password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}
