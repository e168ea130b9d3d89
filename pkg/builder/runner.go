// Package builder contains the run loop that turns a plan and a model's
// output into applied workspace patches.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/patchsmith/patchsmith/pkg/changetracker"
	"github.com/patchsmith/patchsmith/pkg/events"
	"github.com/patchsmith/patchsmith/pkg/history"
	"github.com/patchsmith/patchsmith/pkg/interpreter"
	"github.com/patchsmith/patchsmith/pkg/logging"
	"github.com/patchsmith/patchsmith/pkg/parser"
	"github.com/patchsmith/patchsmith/pkg/patch"
	"github.com/patchsmith/patchsmith/pkg/provider"
	"github.com/patchsmith/patchsmith/pkg/safety"
	"github.com/patchsmith/patchsmith/pkg/tools"
	"github.com/patchsmith/patchsmith/pkg/types"
)

// retryState tracks where a patch_json negotiation is in its budget of one
// schema-repair retry per format and one format fallback per run.
type retryState int

const (
	retryInitial retryState = iota
	retrySchema
	retryFormatFallback
	retryFailed
)

const (
	defaultMaxSteps     = 8
	defaultMaxToolCalls = 16
)

// Runner drives a single builder run: model calls, protocol negotiation,
// safety validation, and patch application.
type Runner struct {
	provider provider.Provider
	applier  *patch.Applier
	guard    *safety.Guard
	registry tools.Registry
	interp   interpreter.Interpreter
	bus      *events.Bus
	tracker  *changetracker.Tracker
	lanes    history.ContextManager
	laneID   string
	logger   *logging.Logger

	mode                  types.RunMode
	format                types.PatchFormat
	maxSteps              int
	maxToolCalls          int
	fallbackToInterpreter bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithMode sets the initial output protocol.
func WithMode(mode types.RunMode) Option {
	return func(r *Runner) { r.mode = mode }
}

// WithFormat sets the initial patch_json payload format.
func WithFormat(format types.PatchFormat) Option {
	return func(r *Runner) { r.format = format }
}

// WithRegistry sets the tool registry used in tool_calls mode.
func WithRegistry(registry tools.Registry) Option {
	return func(r *Runner) { r.registry = registry }
}

// WithInterpreter sets the freeform interpreter strategy.
func WithInterpreter(i interpreter.Interpreter) Option {
	return func(r *Runner) { r.interp = i }
}

// WithEvents sets the event bus runs publish to.
func WithEvents(bus *events.Bus) Option {
	return func(r *Runner) { r.bus = bus }
}

// WithTracker sets the revision tracker applied patches are recorded to.
func WithTracker(t *changetracker.Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

// WithLane attaches a conversation lane for history replay and recording.
func WithLane(lanes history.ContextManager, laneID string) Option {
	return func(r *Runner) {
		r.lanes = lanes
		r.laneID = laneID
	}
}

// WithLimits bounds model-call rounds and tool invocations.
func WithLimits(maxSteps, maxToolCalls int) Option {
	return func(r *Runner) {
		if maxSteps > 0 {
			r.maxSteps = maxSteps
		}
		if maxToolCalls > 0 {
			r.maxToolCalls = maxToolCalls
		}
	}
}

// WithInterpreterFallback toggles routing of targeted prose to the
// interpreter while in patch_json mode.
func WithInterpreterFallback(enabled bool) Option {
	return func(r *Runner) { r.fallbackToInterpreter = enabled }
}

// NewRunner builds a Runner around a provider, applier, and guard.
func NewRunner(p provider.Provider, applier *patch.Applier, guard *safety.Guard, opts ...Option) *Runner {
	r := &Runner{
		provider:              p,
		applier:               applier,
		guard:                 guard,
		interp:                &interpreter.Heuristic{},
		logger:                logging.GetLogger(),
		mode:                  types.ModePatchJSON,
		format:                types.FormatSearchReplace,
		maxSteps:              defaultMaxSteps,
		maxToolCalls:          defaultMaxToolCalls,
		fallbackToInterpreter: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one builder run for a plan and context bundle. It returns a
// RunResult when a patch was applied, a terminal tool_calls message was
// produced, or the model asked for more context; every failure surfaces as
// an error, with policy and application failures classified as
// *types.PatchApplyError.
func (r *Runner) Run(ctx context.Context, plan *types.Plan, bundle *types.ContextBundle) (*types.RunResult, error) {
	r.publish(events.TypeRunStarted, map[string]any{
		"mode":     string(r.mode),
		"format":   string(r.format),
		"provider": r.provider.GetName(),
		"model":    r.provider.GetModel(),
	})

	result, err := r.dispatch(ctx, plan, bundle)
	if err != nil {
		r.logger.LogError(err)
		r.publish(events.TypeRunFailed, map[string]any{"error": err.Error()})
		return nil, err
	}
	r.publish(events.TypeRunCompleted, map[string]any{
		"tool_calls_executed": result.ToolCallsExecuted,
		"context_requested":   result.ContextRequest != nil,
	})
	return result, nil
}

func (r *Runner) dispatch(ctx context.Context, plan *types.Plan, bundle *types.ContextBundle) (*types.RunResult, error) {
	switch r.mode {
	case types.ModeToolCalls:
		return r.runToolCalls(ctx, plan, bundle)
	case types.ModeFreeform:
		return r.runFreeform(ctx, plan, bundle)
	default:
		return r.runPatchJSON(ctx, plan, bundle, r.format)
	}
}

// baseMessages assembles system prompt, replayed lane history, and the user
// prompt for a turn. In patch_json mode system-role history entries are
// dropped so a prior run's schema instructions are not replayed.
func (r *Runner) baseMessages(mode types.RunMode, format types.PatchFormat, plan *types.Plan, bundle *types.ContextBundle) []provider.Message {
	messages := []provider.Message{{Role: "system", Content: systemPrompt(mode, format)}}
	if r.lanes != nil && r.laneID != "" {
		prior, err := r.lanes.Prepare(r.laneID)
		if err != nil {
			r.logger.LogError(fmt.Errorf("lane %s unavailable: %w", r.laneID, err))
		} else {
			if mode == types.ModePatchJSON {
				prior = history.FilterSystemRole(prior)
			}
			messages = append(messages, prior...)
		}
	}
	return append(messages, provider.Message{Role: "user", Content: buildUserPrompt(plan, bundle)})
}

func (r *Runner) call(ctx context.Context, req *provider.ChatRequest) (string, *provider.ChatResponse, error) {
	r.publish(events.TypeModelCall, map[string]any{"model": r.provider.GetModel()})
	resp, err := r.provider.SendChatRequest(ctx, req)
	if err != nil {
		return "", nil, err
	}
	content, _ := resp.FirstMessage()
	return content, resp, nil
}

// runToolCalls loops over tool invocations until the model emits a terminal
// message or a budget runs out. A provider that rejects tool declarations,
// or a first turn with zero executable tool calls, downgrades the run to
// patch_json.
func (r *Runner) runToolCalls(ctx context.Context, plan *types.Plan, bundle *types.ContextBundle) (*types.RunResult, error) {
	if r.registry == nil {
		return nil, fmt.Errorf("tool_calls mode requires a tool registry")
	}
	messages := r.baseMessages(types.ModeToolCalls, r.format, plan, bundle)
	decls := r.registry.Declarations()
	executed := 0

	for step := 0; step < r.maxSteps; step++ {
		content, resp, err := r.call(ctx, &provider.ChatRequest{
			Messages:   messages,
			Tools:      decls,
			ToolChoice: "auto",
		})
		if err != nil {
			if provider.IsToolsUnsupported(err) {
				r.downgrade("provider does not support tools")
				return r.runPatchJSON(ctx, plan, bundle, r.format)
			}
			return nil, fmt.Errorf("model call failed: %w", err)
		}

		calls, _ := parser.ExtractToolCalls(resp)
		if len(calls) == 0 {
			if executed == 0 {
				r.downgrade("model produced no tool calls")
				return r.runPatchJSON(ctx, plan, bundle, r.format)
			}
			r.appendHistory(messages, content)
			return &types.RunResult{FinalMessage: content, ToolCallsExecuted: executed}, nil
		}

		messages = append(messages, provider.Message{Role: "assistant", Content: content, ToolCalls: calls})
		for _, call := range calls {
			if executed >= r.maxToolCalls {
				return nil, fmt.Errorf("tool call budget of %d exhausted", r.maxToolCalls)
			}
			output, execErr := r.registry.Execute(ctx, call.Function.Name, call.Function.Arguments)
			executed++
			r.publish(events.TypeToolExecution, map[string]any{
				"tool":  call.Function.Name,
				"error": execErr != nil,
			})
			if execErr != nil {
				output = fmt.Sprintf("tool error: %v", execErr)
			}
			messages = append(messages, provider.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    output,
			})
		}
	}
	return nil, fmt.Errorf("step budget of %d exhausted without a terminal message", r.maxSteps)
}

func (r *Runner) runFreeform(ctx context.Context, plan *types.Plan, bundle *types.ContextBundle) (*types.RunResult, error) {
	messages := r.baseMessages(types.ModeFreeform, r.format, plan, bundle)
	raw, _, err := r.call(ctx, &provider.ChatRequest{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	ops, err := r.interp.Interpret(raw, r.format)
	if err != nil {
		return nil, err
	}
	return r.finish(plan, bundle, ops, raw, messages)
}

// runPatchJSON negotiates a structured patch payload: at most one
// schema-repair retry per format, at most one file_writes to search_replace
// fallback, then fail closed.
func (r *Runner) runPatchJSON(ctx context.Context, plan *types.Plan, bundle *types.ContextBundle, format types.PatchFormat) (*types.RunResult, error) {
	messages := r.baseMessages(types.ModePatchJSON, format, plan, bundle)
	state := retryInitial

	for {
		raw, _, err := r.call(ctx, &provider.ChatRequest{Messages: messages, ResponseFormat: "json_object"})
		if err != nil {
			return nil, fmt.Errorf("model call failed: %w", err)
		}

		if req, ok := parser.DetectContextRequest(raw); ok {
			r.publish(events.TypeContextRequest, req)
			r.appendHistory(messages, raw)
			return &types.RunResult{FinalMessage: raw, ContextRequest: req}, nil
		}

		ops, parseErr := r.parsePayload(raw, format)
		if parseErr == nil {
			return r.finish(plan, bundle, ops, raw, messages)
		}
		r.logger.Logf("patch_json parse failed (%s): %v", format, parseErr)

		switch state {
		case retryInitial:
			state = retrySchema
		case retrySchema:
			if format == types.FormatFileWrites {
				state = retryFormatFallback
				format = types.FormatSearchReplace
				r.publish(events.TypeModeFallback, map[string]any{
					"from": string(types.FormatFileWrites),
					"to":   string(types.FormatSearchReplace),
				})
				messages = r.baseMessages(types.ModePatchJSON, format, plan, bundle)
			} else {
				state = retryFailed
			}
		case retryFormatFallback:
			state = retryFailed
		}
		if state == retryFailed {
			if _, ok := parseErr.(*types.PatchApplyError); ok {
				return nil, parseErr
			}
			return nil, types.NewPatchApplyError(types.ErrClassSchema, "model output unusable after retries: %v", parseErr)
		}

		messages = append(messages,
			provider.Message{Role: "assistant", Content: raw},
			provider.Message{Role: "user", Content: schemaRepairPrompt(format, parseErr)},
		)
	}
}

// parsePayload parses raw model output under the active format. Targeted
// prose is handed to the interpreter when that fallback is enabled; generic
// prose stays a schema failure so the retry path handles it.
func (r *Runner) parsePayload(raw string, format types.PatchFormat) ([]types.PatchOperation, error) {
	ops, err := parser.ForFormat(format).Parse(raw)
	if err == nil {
		return ops, nil
	}
	if r.fallbackToInterpreter && r.interp != nil && parser.IsTargetedProse(raw) {
		return r.interp.Interpret(raw, format)
	}
	return nil, err
}

// finish validates and applies a patch set. Guard and applier failures are
// fatal; the model is never re-asked once its intent is structurally valid.
func (r *Runner) finish(plan *types.Plan, bundle *types.ContextBundle, ops []types.PatchOperation, raw string, messages []provider.Message) (*types.RunResult, error) {
	if err := r.guard.Validate(ops, plan, bundle); err != nil {
		return nil, err
	}

	befores := make([]string, len(ops))
	for i := range ops {
		befores[i] = r.readWorkspaceFile(ops[i].File)
	}
	if err := r.applier.Apply(ops); err != nil {
		return nil, err
	}

	for i := range ops {
		op := &ops[i]
		r.publish(events.TypePatchApplied, map[string]any{
			"action": string(op.Action),
			"file":   op.File,
		})
		if r.tracker != nil {
			after := r.readWorkspaceFile(op.File)
			if err := r.tracker.Record(op.File, string(op.Action), befores[i], after); err != nil {
				r.logger.LogError(fmt.Errorf("failed to record revision for %s: %w", op.File, err))
			}
		}
	}

	summary := parser.Describe(ops)
	r.logger.LogProcessStep(summary)
	r.appendHistory(messages, raw)
	return &types.RunResult{FinalMessage: summary}, nil
}

func (r *Runner) readWorkspaceFile(rel string) string {
	data, err := os.ReadFile(filepath.Join(r.applier.Root(), rel))
	if err != nil {
		return ""
	}
	return string(data)
}

// downgrade permanently switches the run to patch_json.
func (r *Runner) downgrade(reason string) {
	r.logger.Logf("downgrading to patch_json: %s", reason)
	r.mode = types.ModePatchJSON
	r.publish(events.TypeModeFallback, map[string]any{
		"from":   string(types.ModeToolCalls),
		"to":     string(types.ModePatchJSON),
		"reason": reason,
	})
}

// appendHistory records the final user turn and the assistant reply on the
// run's lane, if one is configured.
func (r *Runner) appendHistory(messages []provider.Message, response string) {
	if r.lanes == nil || r.laneID == "" {
		return
	}
	if n := len(messages); n > 0 && messages[n-1].Role == "user" {
		if err := r.lanes.Append(r.laneID, messages[n-1]); err != nil {
			r.logger.LogError(err)
			return
		}
	}
	if err := r.lanes.Append(r.laneID, provider.Message{Role: "assistant", Content: response}); err != nil {
		r.logger.LogError(err)
	}
}

func (r *Runner) publish(eventType string, data any) {
	if r.bus != nil {
		r.bus.Publish(eventType, data)
	}
}
