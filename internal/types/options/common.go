// internal/types/options/common.go

package options

import (
	"fmt"
	"time"
)

const (
	DefaultRunTimeout   = 200 * time.Second
	DefaultStopTimeout  = 30 * time.Second
	MinRunTimeout       = time.Second
	MaxRunTimeout       = 24 * time.Hour
	DefaultTickInterval = 16 * time.Millisecond
)

// Error types personnalisés
type ErrorType int

const (
	ErrTypeGeneric ErrorType = iota
	ErrTypeEngine
	ErrTypeSimulation
	ErrTypeDatabase
	ErrTypeValidation
)

// CustomError représente une erreur avec contexte
type CustomError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *CustomError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Cause
}

// NewError crée une nouvelle erreur personnalisée
func NewError(errType ErrorType, message string, cause error) error {
	return &CustomError{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}
