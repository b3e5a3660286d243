package user

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/go-playground/validator/v10"

	"github.com/questtrack/questtrack/core"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var AllRoles = []string{RoleAdmin, RoleUser}

type User struct {
	ID           int      `json:"id"`
	Username     string   `json:"username"`
	Roles        []string `json:"roles"`
	PasswordHash []byte   `json:"-"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// NewUser contains information needed to create or update a User from the admin CLI.
type NewUser struct {
	Username string   `json:"username" validate:"required,min=3,alphanum_"`
	Password string   `json:"password" validate:"required"`
	Roles    []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	if len(nu.Roles) == 0 {
		nu.Roles = []string{RoleUser}
	}
	return validate.Struct(nu)
}
