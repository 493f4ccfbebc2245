package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	logx "github.com/voicebot-core/server/pkg/logger"
	"github.com/voicebot-core/server/pkg/metrics"
)

// ErrMissingArgument is reported when a required tool argument is absent or empty.
var ErrMissingArgument = errors.New("missing required argument")

// Spec declares a tool: its catalog entry and which string parameters carry dates.
type Spec struct {
	Name       string
	Desc       string
	Params     map[string]*schema.ParameterInfo
	DateParams []string
}

// Info builds the eino catalog entry advertised to the model.
func (s Spec) Info() *schema.ToolInfo {
	info := &schema.ToolInfo{Name: s.Name, Desc: s.Desc}
	if len(s.Params) > 0 {
		info.ParamsOneOf = schema.NewParamsOneOfByParams(s.Params)
	}
	return info
}

func (s Spec) paramNames() []string {
	names := make([]string, 0, len(s.Params))
	for n := range s.Params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type entry struct {
	spec Spec
	tool tool.InvokableTool
}

// Registry is the fixed catalog of tools a call may invoke and the dispatcher
// that executes them.
type Registry struct {
	entries    map[string]entry
	order      []string
	pinnedYear int
	handlers   []callbacks.Handler
}

// NewRegistry creates an empty registry. Date parameters of registered tools
// are pinned to pinnedYear; handlers observe every dispatch.
func NewRegistry(pinnedYear int, handlers ...callbacks.Handler) *Registry {
	return &Registry{
		entries:    map[string]entry{},
		pinnedYear: pinnedYear,
		handlers:   handlers,
	}
}

// Add registers a typed handler under spec. Registering a name twice replaces
// the earlier tool.
func Add[T any](r *Registry, spec Spec, fn func(ctx context.Context, in T) (*Result, error)) {
	t := utils.NewTool(spec.Info(), fn)
	if _, exists := r.entries[spec.Name]; !exists {
		r.order = append(r.order, spec.Name)
	}
	r.entries[spec.Name] = entry{spec: spec, tool: t}
}

// Infos returns the catalog in registration order, ready for BindTools.
func (r *Registry) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		info, err := r.entries[name].tool.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool %s info: %w", name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Dispatch executes one tool call. It never returns an error: unknown tools,
// malformed arguments, handler errors and panics all become a failed Result the
// model can narrate.
func (r *Registry) Dispatch(ctx context.Context, call schema.ToolCall) (out Outcome) {
	name := call.Function.Name
	label := name
	if _, known := r.entries[name]; !known {
		label = "unknown"
	}

	defer func() {
		if p := recover(); p != nil {
			logx.Error().Str("tool", name).Interface("panic", p).Msg("tool panicked")
			out = failure(call, fmt.Sprintf("tool %s failed unexpectedly", name))
		}
		result := "ok"
		if !out.Result.Success {
			result = "failed"
		}
		metrics.ToolDispatches.WithLabelValues(label, result).Inc()
	}()

	e, ok := r.entries[name]
	if !ok {
		// Gracefully handle hallucinated or malformed tool calls (e.g., empty name)
		logx.Warn().Str("tool", name).Str("arguments", call.Function.Arguments).Msg("unknown tool requested")
		return failure(call, fmt.Sprintf("unknown tool: %q", name))
	}

	args := r.sanitizeArguments(e.spec, call.Function.Arguments)
	call.Function.Arguments = args
	if err := validateArguments(e.spec, args); err != nil {
		logx.Warn().Err(err).Str("tool", name).Str("arguments", args).Msg("rejected tool arguments")
		return failure(call, err.Error())
	}

	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      "BookingTool",
		Component: components.ComponentOfTool,
	}, r.handlers...)
	ctx = callbacks.OnStart(ctx, &tool.CallbackInput{ArgumentsInJSON: args})

	payload, err := e.tool.InvokableRun(ctx, args)
	if err != nil {
		callbacks.OnError(ctx, err)
		logx.Warn().Err(err).Str("tool", name).Msg("tool returned an error")
		return failure(call, err.Error())
	}
	callbacks.OnEnd(ctx, &tool.CallbackOutput{Response: payload})

	var res Result
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		// plain text answers are treated as successful messages
		res = Result{Success: true, Message: payload}
	}
	logx.Info().
		Str("tool", name).
		Str("tool_call_id", call.ID).
		Bool("success", res.Success).
		Bool("transfer", res.ShouldTransfer).
		Msg("tool dispatched")
	return Outcome{Call: call, Result: res, Payload: payload}
}
