// Package router drives a conversation across a fallback chain of LLM
// providers. A request is retried per provider, falls over to the next
// provider when one is out of attempts or terminally broken, and loops on
// tool calls against the provider that first answered.
package router

import (
	"context"

	"github.com/codefionn/agentschnell/internal/consts"
	"github.com/codefionn/agentschnell/internal/llm"
	"github.com/codefionn/agentschnell/internal/logger"
	"github.com/codefionn/agentschnell/internal/provider"
	"github.com/codefionn/agentschnell/internal/retry"
	"github.com/codefionn/agentschnell/internal/session"
	"github.com/codefionn/agentschnell/internal/tools"
)

// ProviderSource yields the fallback chain and builds clients for it.
// *provider.Manager is the production implementation.
type ProviderSource interface {
	Chain(selected provider.Ref) ([]provider.Ref, error)
	CreateClient(ref provider.Ref) (llm.Client, error)
}

// Options tune a Router. Zero values pick the defaults.
type Options struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	MaxToolTurns int
}

// Router owns one conversation's provider selection and tool dispatch.
type Router struct {
	providers ProviderSource
	registry  *tools.Registry
	sess      *session.Session
	selected  provider.Ref
	policy    retry.Policy
	opts      Options
}

// New builds a Router for the given conversation. selected names the
// provider/model the user asked for; the rest of the chain comes from the
// provider source.
func New(providers ProviderSource, registry *tools.Registry, sess *session.Session, selected provider.Ref, policy retry.Policy, opts Options) *Router {
	if opts.MaxToolTurns <= 0 {
		opts.MaxToolTurns = consts.DefaultMaxToolTurns
	}
	return &Router{
		providers: providers,
		registry:  registry,
		sess:      sess,
		selected:  selected,
		policy:    policy,
		opts:      opts,
	}
}

// Converse sends a user prompt through the provider chain and returns the
// final assistant text. Providers that fail before producing a response
// leave no trace in the conversation; once a provider has answered, the
// tool-call loop stays on that provider.
func (r *Router) Converse(ctx context.Context, prompt string) (string, error) {
	chain, err := r.providers.Chain(r.selected)
	if err != nil {
		return "", err
	}

	if err := r.sess.Append(&session.Message{Role: session.RoleUser, Content: prompt}); err != nil {
		return "", err
	}

	var failures []ProviderFailure
	for _, ref := range chain {
		client, err := r.providers.CreateClient(ref)
		if err != nil {
			logger.Warn("Skipping provider %s: %v", ref.Provider, err)
			failures = append(failures, ProviderFailure{Provider: ref.Provider, Err: err})
			continue
		}

		resp, err := r.complete(ctx, ref.Provider, client)
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled or past its deadline: walking the rest of the
				// chain would only collect more of the same failure.
				return "", err
			}
			logger.Warn("Provider %s failed, trying next: %v", ref.Provider, err)
			failures = append(failures, ProviderFailure{Provider: ref.Provider, Err: err})
			continue
		}

		logger.Debug("Provider %s answered with model %s", ref.Provider, client.GetModelName())
		return r.toolLoop(ctx, ref.Provider, client, resp)
	}

	return "", &AllProvidersError{Failures: failures}
}

// complete issues one completion against the current conversation history
// under the retry policy.
func (r *Router) complete(ctx context.Context, providerName string, client llm.Client) (*llm.CompletionResponse, error) {
	req := &llm.CompletionRequest{
		Messages:     r.sess.History(),
		SystemPrompt: r.opts.SystemPrompt,
		Temperature:  r.opts.Temperature,
		MaxTokens:    r.opts.MaxTokens,
	}
	if r.registry != nil {
		req.Tools = r.registry.ToJSONSchema()
	}
	logger.Debug("Issuing completion to %s: %d messages, ~%d tokens",
		providerName, len(req.Messages), llm.CountTokensForMessages(req.Messages))
	return retry.Execute(ctx, providerName, r.policy, func(ctx context.Context) (*llm.CompletionResponse, error) {
		return client.CompleteWithRequest(ctx, req)
	})
}

// toolLoop records the assistant's response and, while it keeps requesting
// tools, dispatches them and re-issues the grown conversation to the same
// provider. Errors after this point do not fall over: the provider already
// shaped the conversation.
func (r *Router) toolLoop(ctx context.Context, providerName string, client llm.Client, resp *llm.CompletionResponse) (string, error) {
	for turn := 0; ; turn++ {
		// Normalize correlation ids before the assistant message is written
		// out, so the persisted tool_calls carry the same ids the tool
		// results will reference. The session length scopes synthesized ids
		// to the conversation rather than to this one response.
		calls := llm.ParseToolCalls(resp.ToolCalls, r.sess.Len())

		if err := r.sess.Append(&session.Message{
			Role:      session.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}); err != nil {
			return "", err
		}

		if len(calls) == 0 {
			return resp.Content, nil
		}
		if turn >= r.opts.MaxToolTurns {
			return "", &MaxTurnsError{Limit: r.opts.MaxToolTurns}
		}

		for _, call := range calls {
			result := r.dispatch(ctx, call)
			if err := r.sess.Append(&session.Message{
				Role:     session.RoleTool,
				Content:  result.Text(),
				ToolID:   result.ID,
				ToolName: call.Name,
			}); err != nil {
				return "", err
			}
		}

		next, err := r.complete(ctx, providerName, client)
		if err != nil {
			return "", err
		}
		resp = next
	}
}

// dispatch runs one tool call. The registry already converts unknown tools,
// timeouts, and panics into failed results, so this never errors out of the
// conversation.
func (r *Router) dispatch(ctx context.Context, call llm.ToolCall) *tools.ToolResult {
	toolCall := &tools.ToolCall{
		ID:         call.ID,
		Name:       call.Name,
		Parameters: call.Arguments,
	}
	if r.registry == nil {
		return &tools.ToolResult{ID: call.ID, Error: "no tools are provisioned for this session"}
	}

	result := r.registry.Execute(ctx, toolCall)
	if result.Failed() {
		logger.Debug("Tool %s failed: %s", call.Name, result.Error)
	}
	return result
}
