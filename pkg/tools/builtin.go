package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/patchsmith/patchsmith/pkg/patch"
	"github.com/patchsmith/patchsmith/pkg/types"
	"github.com/patchsmith/patchsmith/pkg/workspace"
)

// RegisterBuiltins adds the standard workspace tools to the registry.
func RegisterBuiltins(registry Registry, root string) error {
	builtins := []Tool{
		&ReadFileTool{root: root},
		&ListFilesTool{root: root},
		&EditFileTool{applier: patch.NewApplier(root)},
		&WriteFileTool{applier: patch.NewApplier(root)},
	}
	for _, tool := range builtins {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func stringArg(args map[string]interface{}, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return value, nil
}

func schema(required []string, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

// ReadFileTool returns the content of a workspace file.
type ReadFileTool struct {
	root string
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the content of a workspace file" }
func (t *ReadFileTool) Parameters() interface{} {
	return schema([]string{"path"}, map[string]interface{}{
		"path": stringProp("Workspace-relative file path"),
	})
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("path %q escapes the workspace", path)
	}
	data, err := os.ReadFile(filepath.Join(t.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// ListFilesTool lists workspace files, honoring .gitignore rules.
type ListFilesTool struct {
	root string
}

func (t *ListFilesTool) Name() string        { return "list_files" }
func (t *ListFilesTool) Description() string { return "List workspace files, skipping ignored paths" }
func (t *ListFilesTool) Parameters() interface{} {
	return schema(nil, map[string]interface{}{})
}

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	rules := workspace.LoadIgnoreRules(t.root)
	files, err := workspace.ListFiles(t.root, rules)
	if err != nil {
		return "", fmt.Errorf("failed to list files: %w", err)
	}
	return strings.Join(files, "\n"), nil
}

// EditFileTool applies one search/replace edit through the patch applier,
// inheriting its exact-then-normalized matching and ambiguity rejection.
type EditFileTool struct {
	applier *patch.Applier
}

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "Replace a unique block of text in a workspace file"
}
func (t *EditFileTool) Parameters() interface{} {
	return schema([]string{"path", "search_block", "replace_block"}, map[string]interface{}{
		"path":          stringProp("Workspace-relative file path"),
		"search_block":  stringProp("Exact text to find; must match one location"),
		"replace_block": stringProp("Replacement text"),
	})
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	searchBlock, err := stringArg(args, "search_block")
	if err != nil {
		return "", err
	}
	replaceBlock, err := stringArg(args, "replace_block")
	if err != nil {
		return "", err
	}

	err = t.applier.Apply([]types.PatchOperation{{
		Action:       types.ActionReplace,
		File:         path,
		SearchBlock:  searchBlock,
		ReplaceBlock: replaceBlock,
	}})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Edited %s: replaced %d characters with %d characters", path, len(searchBlock), len(replaceBlock)), nil
}

// WriteFileTool creates or overwrites a workspace file.
type WriteFileTool struct {
	applier *patch.Applier
}

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Description() string { return "Create or overwrite a workspace file" }
func (t *WriteFileTool) Parameters() interface{} {
	return schema([]string{"path", "content"}, map[string]interface{}{
		"path":    stringProp("Workspace-relative file path"),
		"content": stringProp("Full file content"),
	})
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return "", err
	}

	err = t.applier.Apply([]types.PatchOperation{{
		Action:  types.ActionCreate,
		File:    path,
		Content: content,
	}})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
}
