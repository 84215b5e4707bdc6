package validator

import (
	"errors"
	"regexp"
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidTitle    = errors.New("invalid title")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidPrice    = errors.New("invalid price")
)

var (
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
)

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

func ValidateTitle(title string) error {
	if len(title) == 0 || len(title) > 200 {
		return ErrInvalidTitle
	}
	return nil
}

func ValidateCategory(category string) error {
	if category != "vehicle" && category != "part" {
		return ErrInvalidCategory
	}
	return nil
}

func ValidatePriceMinor(price int64) error {
	if price <= 0 {
		return ErrInvalidPrice
	}
	return nil
}
