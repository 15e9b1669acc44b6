package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sashabaranov/go-openai"
)

const throttleOutput = `{"error":"Cannot take more than one action at a time."}`

// Registry maps tool names to their definitions. It is populated once at
// startup and read-only afterwards.
type Registry struct {
	tools map[string]Tool
	log   *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{tools: make(map[string]Tool), log: log}
}

// Register adds a tool. Duplicate names are rejected so a misconfigured
// startup fails loudly instead of shadowing a handler.
func (r *Registry) Register(tool Tool) error {
	if err := tool.validate(); err != nil {
		return err
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tools: %q is already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns the wire-facing definitions in stable order.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Spec{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DispatchBatch services one requires_action batch. It always returns
// exactly one output per call: at most one handler is invoked per batch and
// every further call receives a synthetic throttle output, a deliberate
// guard against compound tool invocations in a single turn.
func (r *Registry) DispatchBatch(ctx context.Context, inv *Invocation, calls []Call) []Output {
	outputs := make([]Output, 0, len(calls))
	for _, call := range calls {
		if len(outputs) > 0 {
			r.log.Warn("tool_call_throttled", "tool", call.Name, "call_id", call.ID)
			outputs = append(outputs, Output{CallID: call.ID, Output: throttleOutput})
			continue
		}
		outputs = append(outputs, r.dispatch(ctx, inv, call))
	}
	return outputs
}

// dispatch never fails: argument and handler errors become serialized error
// outputs so the batch submission is never blocked by one bad call.
func (r *Registry) dispatch(ctx context.Context, inv *Invocation, call Call) Output {
	tool, ok := r.Get(call.Name)
	if !ok {
		r.log.Warn("tool_not_found", "tool", call.Name, "call_id", call.ID)
		return errorOutput(call.ID, fmt.Errorf("tool not found: %s", call.Name))
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &params); err != nil {
		r.log.Warn("tool_params_invalid", "tool", call.Name, "error", err.Error())
		return errorOutput(call.ID, fmt.Errorf("invalid arguments: %v", err))
	}
	if err := validateParams(tool.Parameters, params); err != nil {
		r.log.Warn("tool_params_invalid", "tool", call.Name, "error", err.Error())
		return errorOutput(call.ID, err)
	}

	result, err := tool.Handler(ctx, inv, params)
	if err != nil {
		r.log.Warn("tool_failed", "tool", call.Name, "error", err.Error())
		return errorOutput(call.ID, err)
	}

	if success, ok := result.(bool); ok {
		result = map[string]bool{"success": success}
	}
	payload, err := json.Marshal(result)
	if err != nil {
		r.log.Warn("tool_result_unserializable", "tool", call.Name, "error", err.Error())
		return errorOutput(call.ID, fmt.Errorf("unserializable result: %v", err))
	}
	return Output{CallID: call.ID, Output: string(payload)}
}

// errorOutput serializes a failure into the output payload. Remote API
// errors are unwrapped to their inner shape so the assistant sees the
// provider's own code/message rather than a Go error string.
func errorOutput(callID string, err error) Output {
	var payload any
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		payload = apiErr
	} else {
		payload = map[string]string{"error": err.Error()}
	}
	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		data = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	return Output{CallID: callID, Output: string(data)}
}
