package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/patchsmith/patchsmith/pkg/provider"
)

// DefaultRegistry is the default implementation of Registry.
type DefaultRegistry struct {
	tools map[string]Tool
	mutex sync.RWMutex
}

// NewDefaultRegistry creates an empty registry.
func NewDefaultRegistry() *DefaultRegistry {
	return &DefaultRegistry{tools: make(map[string]Tool)}
}

// Register adds a new tool.
func (r *DefaultRegistry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s is already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get retrieves a tool by name.
func (r *DefaultRegistry) Get(name string) (Tool, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Execute decodes the raw JSON arguments and runs the named tool.
func (r *DefaultRegistry) Execute(ctx context.Context, name string, rawArgs string) (string, error) {
	tool, exists := r.Get(name)
	if !exists {
		return "", fmt.Errorf("tool %s is not registered", name)
	}

	args := map[string]interface{}{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return "", fmt.Errorf("invalid arguments for tool %s: %w", name, err)
		}
	}
	return tool.Execute(ctx, args)
}

// Declarations renders the registered tools as provider declarations in
// stable name order.
func (r *DefaultRegistry) Declarations() []provider.Tool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	decls := make([]provider.Tool, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		var decl provider.Tool
		decl.Type = "function"
		decl.Function.Name = tool.Name()
		decl.Function.Description = tool.Description()
		decl.Function.Parameters = tool.Parameters()
		decls = append(decls, decl)
	}
	return decls
}
