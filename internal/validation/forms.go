package validation

import (
	"sort"
	"strings"
	"unicode"
)

const specialChars = `!@#$%^&*(),.?":{}|<>`

// ValidationError carries the first failing rule of every invalid field.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Field builds a single-field ValidationError.
func Field(field, msg string) *ValidationError {
	e := &ValidationError{}
	e.add(field, msg)
	return e
}

// LoginForm is submitted by the login page.
type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the login form.
func (f LoginForm) Validate() error {
	errs := &ValidationError{}
	checkEmail(errs, f.Email)
	if f.Password == "" {
		errs.add("password", "Password is required")
	}
	return errs.orNil()
}

// RegisterForm is submitted by the register page.
type RegisterForm struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate checks the register form.
func (f RegisterForm) Validate() error {
	errs := &ValidationError{}

	username := strings.TrimSpace(f.Username)
	switch {
	case username == "":
		errs.add("username", "Username is required")
	case len([]rune(username)) < 3:
		errs.add("username", "Username must be at least 3 characters")
	}

	checkEmail(errs, f.Email)
	checkPassword(errs, f.Password)

	switch {
	case f.ConfirmPassword == "":
		errs.add("confirm_password", "Please confirm your password")
	case f.ConfirmPassword != f.Password:
		errs.add("confirm_password", "Passwords do not match")
	}
	return errs.orNil()
}

func checkEmail(errs *ValidationError, email string) {
	switch {
	case strings.TrimSpace(email) == "":
		errs.add("email", "Email is required")
	case !strings.Contains(email, "@") || !strings.Contains(email, "."):
		errs.add("email", "Email is invalid")
	}
}

func checkPassword(errs *ValidationError, password string) {
	if password == "" {
		errs.add("password", "Password is required")
		return
	}
	if len([]rune(password)) < 8 {
		errs.add("password", "Password must be at least 8 characters")
		return
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
		if strings.ContainsRune(specialChars, r) {
			special = true
		}
	}

	switch {
	case !upper:
		errs.add("password", "Password must contain at least one uppercase letter")
	case !lower:
		errs.add("password", "Password must contain at least one lowercase letter")
	case !digit:
		errs.add("password", "Password must contain at least one number")
	case !special:
		errs.add("password", "Password must contain at least one special character")
	}
}
