package executor

import "errors"

var (
	// ErrUnknownTool means the requested name is not part of the active
	// catalog. The conversation branch cannot continue past it.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments means a required parameter is missing or malformed.
	// The message is fed back to the model so it can correct itself.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrUpstreamFailure means the external collaborator behind the tool
	// failed. Never retried here.
	ErrUpstreamFailure = errors.New("tool upstream failure")
)
