// Package mcp implements the Model Context Protocol server for docidx.
package mcp

import (
	"context"
	"errors"
	"fmt"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
)

// Custom MCP error codes for docidx.
const (
	// ErrCodeNotInitialized indicates the index has not been opened.
	ErrCodeNotInitialized = -32001

	// ErrCodeStorage indicates the index directory is unusable.
	ErrCodeStorage = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeWriteFailed indicates a rejected mutation or commit. Retryable.
	ErrCodeWriteFailed = -32004

	// ErrCodeReadFailed indicates a search, lookup or reload failure.
	ErrCodeReadFailed = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var docErr *dxerrors.DocError
	if errors.As(err, &docErr) {
		return mapDocError(docErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

func mapDocError(de *dxerrors.DocError) *MCPError {
	message := de.Message
	if offset, ok := de.Details["offset"]; ok {
		message = fmt.Sprintf("%s (at offset %s)", message, offset)
	}
	if de.Suggestion != "" {
		message = fmt.Sprintf("%s %s", message, de.Suggestion)
	}

	switch de.Code {
	case dxerrors.ErrCodeNotInitialized:
		return &MCPError{Code: ErrCodeNotInitialized, Message: message}
	case dxerrors.ErrCodeStorage:
		return &MCPError{Code: ErrCodeStorage, Message: message}
	case dxerrors.ErrCodeWrite:
		return &MCPError{Code: ErrCodeWriteFailed, Message: message}
	case dxerrors.ErrCodeRead:
		return &MCPError{Code: ErrCodeReadFailed, Message: message}
	}

	switch de.Category {
	case dxerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
