package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func testTool(name string, handler Handler) Tool {
	return Tool{
		Name:        name,
		Description: "test tool",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{"type": "string"},
			},
			"required": []any{"prompt"},
		},
		Handler: handler,
	}
}

func TestRegistry_RejectsDuplicateNames(t *testing.T) {
	reg := NewRegistry(nil)
	tool := testTool("generate_image", func(context.Context, *Invocation, map[string]any) (any, error) {
		return true, nil
	})
	if err := reg.Register(tool); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register(tool); err == nil {
		t.Fatalf("Register() accepted a duplicate name")
	}
}

func TestRegistry_RejectsIncompleteTools(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.Register(Tool{Name: "x", Description: "no handler"}); err == nil {
		t.Fatalf("Register() accepted a tool without a handler")
	}
	if err := reg.Register(Tool{Description: "no name", Handler: func(context.Context, *Invocation, map[string]any) (any, error) {
		return nil, nil
	}}); err == nil {
		t.Fatalf("Register() accepted a tool without a name")
	}
}

func TestDispatchBatch_OneOutputPerCallEvenWhenAllFail(t *testing.T) {
	reg := NewRegistry(nil)
	calls := []Call{
		{ID: "call_1", Name: "missing_tool", Arguments: `{}`},
		{ID: "call_2", Name: "missing_tool", Arguments: `{}`},
		{ID: "call_3", Name: "missing_tool", Arguments: `not json`},
	}
	outputs := reg.DispatchBatch(context.Background(), &Invocation{}, calls)
	if len(outputs) != len(calls) {
		t.Fatalf("DispatchBatch() produced %d outputs, want %d", len(outputs), len(calls))
	}
	for i, output := range outputs {
		if output.CallID != calls[i].ID {
			t.Fatalf("outputs[%d].CallID = %q, want %q", i, output.CallID, calls[i].ID)
		}
	}
}

func TestDispatchBatch_SingleActionThrottle(t *testing.T) {
	reg := NewRegistry(nil)
	invocations := 0
	err := reg.Register(testTool("generate_image", func(context.Context, *Invocation, map[string]any) (any, error) {
		invocations++
		return true, nil
	}))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	calls := []Call{
		{ID: "call_1", Name: "generate_image", Arguments: `{"prompt":"a cat"}`},
		{ID: "call_2", Name: "generate_image", Arguments: `{"prompt":"a dog"}`},
	}
	outputs := reg.DispatchBatch(context.Background(), &Invocation{}, calls)

	if invocations != 1 {
		t.Fatalf("handler invoked %d times, want exactly 1", invocations)
	}
	if outputs[0].Output != `{"success":true}` {
		t.Fatalf("outputs[0] = %q, want success payload", outputs[0].Output)
	}
	if outputs[1].Output != throttleOutput {
		t.Fatalf("outputs[1] = %q, want throttle payload", outputs[1].Output)
	}
}

func TestDispatch_UnknownToolProducesErrorOutput(t *testing.T) {
	reg := NewRegistry(nil)
	outputs := reg.DispatchBatch(context.Background(), &Invocation{}, []Call{
		{ID: "call_1", Name: "nope", Arguments: `{}`},
	})
	if !strings.Contains(outputs[0].Output, "tool not found: nope") {
		t.Fatalf("output = %q, want tool-not-found error", outputs[0].Output)
	}
}

func TestDispatch_InvalidArguments(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.Register(testTool("analyze_image", func(context.Context, *Invocation, map[string]any) (any, error) {
		t.Fatal("handler must not run on invalid arguments")
		return nil, nil
	})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	cases := []struct {
		name string
		args string
	}{
		{name: "malformed json", args: `{"prompt":`},
		{name: "missing required", args: `{}`},
		{name: "wrong type", args: `{"prompt":42}`},
	}
	for _, tc := range cases {
		outputs := reg.DispatchBatch(context.Background(), &Invocation{}, []Call{
			{ID: "call_1", Name: "analyze_image", Arguments: tc.args},
		})
		var payload map[string]any
		if err := json.Unmarshal([]byte(outputs[0].Output), &payload); err != nil {
			t.Fatalf("%s: output %q is not JSON: %v", tc.name, outputs[0].Output, err)
		}
		if _, ok := payload["error"]; !ok {
			t.Fatalf("%s: output %q carries no error description", tc.name, outputs[0].Output)
		}
	}
}

func TestDispatch_HandlerErrorIsSerializedNotPropagated(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.Register(testTool("generate_image", func(context.Context, *Invocation, map[string]any) (any, error) {
		return nil, errors.New("vision model unavailable")
	})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	outputs := reg.DispatchBatch(context.Background(), &Invocation{}, []Call{
		{ID: "call_1", Name: "generate_image", Arguments: `{"prompt":"a cat"}`},
	})
	if !strings.Contains(outputs[0].Output, "vision model unavailable") {
		t.Fatalf("output = %q, want serialized handler error", outputs[0].Output)
	}
}

func TestDispatch_APIErrorIsUnwrappedToInnerPayload(t *testing.T) {
	reg := NewRegistry(nil)
	apiErr := &openai.APIError{Type: "invalid_request_error", Message: "content policy violation"}
	if err := reg.Register(testTool("generate_image", func(context.Context, *Invocation, map[string]any) (any, error) {
		return nil, fmt.Errorf("create image: %w", apiErr)
	})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	outputs := reg.DispatchBatch(context.Background(), &Invocation{}, []Call{
		{ID: "call_1", Name: "generate_image", Arguments: `{"prompt":"a cat"}`},
	})
	var payload map[string]any
	if err := json.Unmarshal([]byte(outputs[0].Output), &payload); err != nil {
		t.Fatalf("output %q is not JSON: %v", outputs[0].Output, err)
	}
	if payload["message"] != "content policy violation" {
		t.Fatalf("output = %q, want the provider's inner error payload", outputs[0].Output)
	}
	if strings.Contains(outputs[0].Output, "create image:") {
		t.Fatalf("output = %q, wrapper text should not leak into the payload", outputs[0].Output)
	}
}

func TestDispatch_ObjectResultIsSerializedDirectly(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.Register(testTool("generate_image", func(context.Context, *Invocation, map[string]any) (any, error) {
		return map[string]any{"success": true, "description": "Image sent."}, nil
	})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	outputs := reg.DispatchBatch(context.Background(), &Invocation{}, []Call{
		{ID: "call_1", Name: "generate_image", Arguments: `{"prompt":"a cat"}`},
	})
	var payload map[string]any
	if err := json.Unmarshal([]byte(outputs[0].Output), &payload); err != nil {
		t.Fatalf("output %q is not JSON: %v", outputs[0].Output, err)
	}
	if payload["description"] != "Image sent." {
		t.Fatalf("output = %q, want the handler result verbatim", outputs[0].Output)
	}
}

func TestSpecs_StableOrder(t *testing.T) {
	reg := NewRegistry(nil)
	for _, name := range []string{"new_thread", "analyze_image", "overwrite_memory"} {
		if err := reg.Register(testTool(name, func(context.Context, *Invocation, map[string]any) (any, error) {
			return true, nil
		})); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}
	specs := reg.Specs()
	want := []string{"analyze_image", "new_thread", "overwrite_memory"}
	for i, spec := range specs {
		if spec.Name != want[i] {
			t.Fatalf("Specs()[%d] = %q, want %q", i, spec.Name, want[i])
		}
	}
}
