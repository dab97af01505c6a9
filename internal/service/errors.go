package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Common errors for service operations.
var (
	ErrInvalidUserName    = errors.New("invalid user name")
	ErrInvalidSort        = errors.New("invalid sort")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrRunInProgress      = errors.New("a run for this user is already in progress")
)

var validate = validator.New()

type userNameInput struct {
	UserName string `validate:"required,max=255"`
}

// validateUserName rejects empty, blank and over-long names. Names are
// otherwise used exactly as given.
func validateUserName(userName string) error {
	if strings.TrimSpace(userName) == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidUserName)
	}
	if err := validate.Struct(userNameInput{UserName: userName}); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidUserName, err.Error())
	}
	return nil
}
