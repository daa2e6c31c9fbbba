package commands

import (
	"errors"
	"fmt"

	"groovebox/internal/services/audio"
	"groovebox/internal/services/resolver"
)

// ErrorType represents different types of errors a command can end with
type ErrorType string

const (
	ErrorTypePrecondition ErrorType = "PRECONDITION"
	ErrorTypeResolution   ErrorType = "RESOLUTION"
	ErrorTypeRender       ErrorType = "RENDER"
	ErrorTypeEmptyState   ErrorType = "EMPTY_STATE"
	ErrorTypeNotConnected ErrorType = "NOT_CONNECTED"
	ErrorTypeQueueFull    ErrorType = "QUEUE_FULL"
	ErrorTypeRateLimit    ErrorType = "RATE_LIMIT"
	ErrorTypeVoice        ErrorType = "VOICE"
	ErrorTypeInternal     ErrorType = "INTERNAL"
)

// BotError represents a structured error with a user-facing reply
type BotError struct {
	Type        ErrorType
	Message     string
	UserMessage string
	Ephemeral   bool
	Cause       error
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *BotError) Unwrap() error {
	return e.Cause
}

// Benign reports whether the error is an expected outcome rather than a failure worth alerting on.
func (e *BotError) Benign() bool {
	switch e.Type {
	case ErrorTypeEmptyState, ErrorTypeNotConnected, ErrorTypeQueueFull, ErrorTypeRateLimit, ErrorTypePrecondition:
		return true
	default:
		return false
	}
}

// NewBotError creates a new BotError
func NewBotError(errorType ErrorType, message, userMessage string, cause error) *BotError {
	return &BotError{
		Type:        errorType,
		Message:     message,
		UserMessage: userMessage,
		Cause:       cause,
	}
}

// NewPreconditionError creates a private precondition failure
func NewPreconditionError(message, userMessage string) *BotError {
	e := NewBotError(ErrorTypePrecondition, message, userMessage, nil)
	e.Ephemeral = true
	return e
}

// NewEmptyStateError creates a benign "nothing to do" reply
func NewEmptyStateError(userMessage string, cause error) *BotError {
	return NewBotError(ErrorTypeEmptyState, "command had nothing to act on", userMessage, cause)
}

// NewResolutionError maps resolver failures to a reply for the requester
func NewResolutionError(cause error) *BotError {
	userMessage := "❌ Something went wrong while processing the input."
	switch {
	case errors.Is(cause, resolver.ErrEmptyInput):
		userMessage = "❌ Please provide a URL or a search term."
	case errors.Is(cause, resolver.ErrNoResults):
		userMessage = "❌ No search results found."
	case errors.Is(cause, resolver.ErrInvalidSource):
		userMessage = "❌ Failed to extract a title from that URL."
	}
	return NewBotError(ErrorTypeResolution, "could not resolve input", userMessage, cause)
}

// asBotError returns err as a BotError, classifying unknown errors as internal
func asBotError(err error) *BotError {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr
	}
	if errors.Is(err, audio.ErrSinkUnavailable) {
		return NewBotError(ErrorTypeRender, "voice sink unavailable", "🔇 Playback could not start in your voice channel. Please try again.", err)
	}
	if errors.Is(err, audio.ErrQueueFull) {
		return NewBotError(ErrorTypeQueueFull, "queue limit reached", "📦 The queue is full, wait for a few tracks to finish.", err)
	}
	return NewBotError(ErrorTypeInternal, "unexpected failure", "❌ An unexpected error occurred. Please try again.", err)
}
