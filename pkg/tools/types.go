// Package tools provides the registry of named tools the builder can
// execute in tool_calls mode.
package tools

import (
	"context"

	"github.com/patchsmith/patchsmith/pkg/provider"
)

// Tool is a pluggable capability the model may invoke. Argument validation
// beyond JSON decoding is each tool's own responsibility.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Parameters returns the JSON schema of the tool's arguments.
	Parameters() interface{}

	// Execute runs the tool with decoded arguments and returns its output.
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// Registry manages available tools.
type Registry interface {
	// Register adds a tool; registering a duplicate name is an error.
	Register(tool Tool) error

	// Get retrieves a tool by name.
	Get(name string) (Tool, bool)

	// Execute runs the named tool with raw JSON arguments.
	Execute(ctx context.Context, name string, rawArgs string) (string, error)

	// Declarations renders every tool as a provider tool declaration.
	Declarations() []provider.Tool
}
