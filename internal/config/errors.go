package config

import (
	"errors"
	"fmt"

	"github.com/aicodeaudit/auditor/internal/auditerr"
)

var (
	// ErrConfigNotFound indicates the configuration file was not found.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidYAML indicates YAML parsing failed.
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrLLMProviderNotFound indicates a referenced LLM provider is unknown.
	ErrLLMProviderNotFound = errors.New("LLM provider not found")
)

// ValidationError wraps a configuration validation failure with context,
// mirroring the teacher's pkg/config/errors.go shape.
type ValidationError struct {
	Component string
	Field     string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %v", e.Component, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, auditerr.ErrConfiguration) to match.
func (e *ValidationError) Is(target error) bool {
	return target == auditerr.ErrConfiguration
}

// NewValidationError constructs a ValidationError.
func NewValidationError(component, field string, err error) *ValidationError {
	return &ValidationError{Component: component, Field: field, Err: err}
}

// LoadError wraps a configuration file loading failure.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("failed to load %s: %v", e.File, e.Err) }
func (e *LoadError) Unwrap() error  { return e.Err }
func (e *LoadError) Is(target error) bool {
	return target == auditerr.ErrConfiguration
}

// NewLoadError constructs a LoadError.
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}
