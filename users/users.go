package users

import (
	"fmt"
	"time"
	"unicode"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// Well known dashboard roles.
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleUser    = "USER"
)

// User is the authenticated principal as returned by the profile endpoint.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName,omitempty"`
	LastName    string    `json:"lastName,omitempty"`
	FullName    string    `json:"fullName,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions,omitempty"`
	IsActive    bool      `json:"isActive"`
	IsVerified  bool      `json:"isVerified"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
	LastLoginAt time.Time `json:"lastLoginAt,omitempty"`
}

// Profile is the display projection of a User.
type Profile struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	FullName  string   `json:"fullName"`
	Avatar    string   `json:"avatar,omitempty"`
	Roles     []string `json:"roles"`
}

// Update carries a partial change to a User. Nil fields are left untouched.
type Update struct {
	Email       *string
	FirstName   *string
	LastName    *string
	FullName    *string
	Avatar      *string
	Roles       []string
	Permissions []string
	IsActive    *bool
	IsVerified  *bool
	UpdatedAt   *time.Time
	LastLoginAt *time.Time
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = utils.CloneStrings(u.Roles)
	c.Permissions = utils.CloneStrings(u.Permissions)
	return &c
}

// Profile projects the user, deriving the full name when it is not set.
func (u *User) Profile() *Profile {
	if u == nil {
		return nil
	}
	fullName := u.FullName
	if fullName == "" {
		fullName = fmt.Sprintf("%s %s", u.FirstName, u.LastName)
	}
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  fullName,
		Avatar:    u.Avatar,
		Roles:     utils.CloneStrings(u.Roles),
	}
}

// Apply merges the update into a copy of u.
func (u *User) Apply(up Update) *User {
	c := u.Clone()
	if up.Email != nil {
		c.Email = *up.Email
	}
	if up.FirstName != nil {
		c.FirstName = *up.FirstName
	}
	if up.LastName != nil {
		c.LastName = *up.LastName
	}
	if up.FullName != nil {
		c.FullName = *up.FullName
	}
	if up.Avatar != nil {
		c.Avatar = *up.Avatar
	}
	if up.Roles != nil {
		c.Roles = utils.CloneStrings(up.Roles)
	}
	if up.Permissions != nil {
		c.Permissions = utils.CloneStrings(up.Permissions)
	}
	if up.IsActive != nil {
		c.IsActive = *up.IsActive
	}
	if up.IsVerified != nil {
		c.IsVerified = *up.IsVerified
	}
	if up.UpdatedAt != nil {
		c.UpdatedAt = *up.UpdatedAt
	}
	if up.LastLoginAt != nil {
		c.LastLoginAt = *up.LastLoginAt
	}
	return c
}

// Account is a user together with its credential, as held by the API side.
type Account struct {
	User         User
	PasswordHash string
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains letters and at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasLetter bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsLetter(char) {
			hasLetter = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasLetter {
		return fmt.Errorf("password must contain at least one letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
