// Package orchestrator runs one prompt through agent dispatch, patch application and recording.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alexr72/wpcv/internal/agent"
	"github.com/alexr72/wpcv/internal/config"
	"github.com/alexr72/wpcv/internal/conversation"
	"github.com/alexr72/wpcv/internal/core"
	"github.com/alexr72/wpcv/internal/journal"
	"github.com/alexr72/wpcv/internal/patch"
	"github.com/alexr72/wpcv/internal/provider"
	"github.com/alexr72/wpcv/internal/validate"
)

var (
	// ErrConversationBusy rejects a prompt while the conversation has a request outstanding.
	ErrConversationBusy = errors.New("conversation busy")
	ErrPatchesDisabled  = errors.New("file modifications are disabled")
)

type AgentResolver interface {
	Resolve(name string) (agent.Agent, error)
}

type PatchApplier interface {
	Apply(d patch.Directive) (patch.Result, error)
}

type Deps struct {
	Agents    AgentResolver
	Store     *conversation.Store
	Client    provider.Completer
	Applier   PatchApplier
	Journal   journal.Journal
	Validator *validate.Pipeline
	Estimator conversation.Estimator
}

type Options struct {
	DefaultAgent       string
	TokenLimit         int
	ResponseReserve    int
	SystemPrompt       string
	User               string
	Revision           string
	ValidateAfterPatch bool
	Expectations       []string
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		DefaultAgent:       cfg.DefaultAgent,
		TokenLimit:         cfg.TokenLimit,
		ResponseReserve:    cfg.ResponseReserve,
		SystemPrompt:       cfg.SystemPrompt,
		User:               cfg.User.Name,
		Revision:           cfg.User.Revision,
		ValidateAfterPatch: cfg.Validation.AfterPatch,
	}
}

type Request struct {
	ConversationID core.ConversationID
	Agent          string
	Prompt         string
	WorkingDir     string
}

type Result struct {
	ConversationID core.ConversationID
	ExchangeID     string
	Agent          string
	Text           string
	PatchPath      string
	Patch          *patch.Result
	PatchErr       error
	Validation     *validate.Report
	Trim           conversation.TrimResult
	JournalErr     error
}

// Outcome is delivered by SubmitAsync.
type Outcome struct {
	Result Result
	Err    error
}

type Orchestrator struct {
	agents    AgentResolver
	store     *conversation.Store
	client    provider.Completer
	applier   PatchApplier
	journal   journal.Journal
	validator *validate.Pipeline
	estimator conversation.Estimator
	opts      Options

	mu     sync.Mutex
	states map[core.ConversationID]State
}

func New(deps Deps, opts Options) *Orchestrator {
	estimator := deps.Estimator
	if estimator == nil {
		estimator = conversation.CharEstimator{}
	}

	validator := deps.Validator
	if validator == nil {
		validator = validate.DefaultPipeline()
	}

	if opts.TokenLimit <= 0 {
		opts.TokenLimit = config.DefaultTokenLimit
	}

	return &Orchestrator{
		agents:    deps.Agents,
		store:     deps.Store,
		client:    deps.Client,
		applier:   deps.Applier,
		journal:   deps.Journal,
		validator: validator,
		estimator: estimator,
		opts:      opts,
		states:    make(map[core.ConversationID]State),
	}
}

func (o *Orchestrator) NewConversation() (core.ConversationID, error) {
	return o.store.Create()
}

// DeleteConversation forgets a conversation unless a request is outstanding on it.
func (o *Orchestrator) DeleteConversation(id core.ConversationID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.states[id]; busy {
		return fmt.Errorf("%w: %s", ErrConversationBusy, id)
	}
	return o.store.Delete(id)
}

// State reports the lifecycle state of a conversation's current request.
func (o *Orchestrator) State(id core.ConversationID) State {
	o.mu.Lock()
	defer o.mu.Unlock()

	if state, ok := o.states[id]; ok {
		return state
	}
	return StateIdle
}

// Submit sends a prompt and blocks until the exchange is recorded or fails.
//
// History only grows when the agent answered. Patch failures are reported in
// Result.PatchErr and never fail the exchange.
//
// DeleteConversation refuses a conversation while Submit runs on it. A store
// shared with another process can still lose the conversation mid-request: the
// patch is then already applied, and Submit returns the partial Result with an
// UnknownConversationError wrapped as "record exchange".
func (o *Orchestrator) Submit(ctx context.Context, req Request) (Result, error) {
	if err := o.begin(req.ConversationID); err != nil {
		return Result{}, err
	}
	defer o.finish(req.ConversationID)

	return o.run(ctx, req)
}

// SubmitAsync rejects a busy conversation immediately and otherwise runs the
// request in the background, delivering exactly one Outcome.
func (o *Orchestrator) SubmitAsync(ctx context.Context, req Request) (<-chan Outcome, error) {
	if err := o.begin(req.ConversationID); err != nil {
		return nil, err
	}

	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		defer o.finish(req.ConversationID)

		result, err := o.run(ctx, req)
		out <- Outcome{Result: result, Err: err}
	}()

	return out, nil
}

func (o *Orchestrator) begin(id core.ConversationID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.states[id]; busy {
		return fmt.Errorf("%w: %s", ErrConversationBusy, id)
	}
	o.states[id] = StateDispatched
	return nil
}

func (o *Orchestrator) transition(id core.ConversationID, state State) {
	o.mu.Lock()
	o.states[id] = state
	o.mu.Unlock()
}

func (o *Orchestrator) finish(id core.ConversationID) {
	o.mu.Lock()
	delete(o.states, id)
	o.mu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context, req Request) (Result, error) {
	id := req.ConversationID

	if err := o.store.Open(id); err != nil {
		return Result{}, err
	}

	agentName := req.Agent
	if agentName == "" {
		agentName = o.opts.DefaultAgent
	}

	a, err := o.agents.Resolve(agentName)
	if err != nil {
		return Result{}, err
	}

	result := Result{ConversationID: id, Agent: a.Name}
	prompt := core.UserMessage(req.Prompt)

	system, hasSystem := o.systemMessage(a, req.WorkingDir)

	headroom := o.opts.ResponseReserve + o.estimator.Estimate(prompt.Content)
	if hasSystem {
		headroom += o.estimator.Estimate(system.Content)
	}

	result.Trim, err = o.store.Trim(id, o.estimator, conversation.Budget{Limit: o.opts.TokenLimit, Headroom: headroom})
	if err != nil {
		return Result{}, err
	}
	if result.Trim.Removed > 0 {
		slog.Info("conversation trimmed", "conversation_id", id, "removed", result.Trim.Removed, "used", result.Trim.Used)
	}

	history, err := o.store.History(id)
	if err != nil {
		return Result{}, err
	}

	messages := make([]core.Message, 0, len(history)+2)
	if hasSystem {
		messages = append(messages, system)
	}
	messages = append(messages, history...)
	messages = append(messages, prompt)

	text, err := o.client.Complete(ctx, a, messages)
	if err != nil {
		slog.Warn("completion failed", "conversation_id", id, "agent", a.Name, "error", err)
		return Result{}, err
	}

	result.Text = text
	if directive, sanitized, ok := patch.Extract(text); ok {
		result.Text = sanitized
		result.PatchPath = directive.Path
		o.transition(id, StatePatchPending)
		o.applyPatch(ctx, id, directive, &result)
	} else {
		o.transition(id, StatePatchSkipped)
	}

	if err := o.store.Append(id, prompt, core.AssistantMessage(result.Text)); err != nil {
		return result, fmt.Errorf("record exchange: %w", err)
	}
	o.transition(id, StateRecorded)

	o.recordJournal(ctx, req, &result)

	return result, nil
}

func (o *Orchestrator) applyPatch(ctx context.Context, id core.ConversationID, directive patch.Directive, result *Result) {
	if o.applier == nil {
		result.PatchErr = ErrPatchesDisabled
		o.transition(id, StatePatchSkipped)
		return
	}

	applied, err := o.applier.Apply(directive)
	if err != nil {
		result.PatchErr = err
		slog.Warn("patch apply failed", "conversation_id", id, "path", directive.Path, "error", err)
		o.transition(id, StatePatchSkipped)
		return
	}

	result.Patch = &applied
	o.transition(id, StatePatchApplied)

	if o.opts.ValidateAfterPatch {
		report := o.validator.Run(ctx, validate.Input{
			Path:         applied.Path,
			Code:         directive.Content,
			Expectations: o.opts.Expectations,
		})
		result.Validation = &report
	}
}

func (o *Orchestrator) recordJournal(ctx context.Context, req Request, result *Result) {
	if o.journal == nil {
		return
	}

	record := journal.Record{
		ConversationID: result.ConversationID,
		Agent:          result.Agent,
		User:           o.opts.User,
		Prompt:         req.Prompt,
		Response:       result.Text,
		Revision:       o.opts.Revision,
		PatchPath:      result.PatchPath,
	}
	if result.PatchErr != nil {
		record.PatchError = result.PatchErr.Error()
	}

	saved, err := o.journal.Append(context.WithoutCancel(ctx), record)
	if err != nil {
		result.JournalErr = err
		slog.Warn("journal append failed", "conversation_id", result.ConversationID, "error", err)
		return
	}
	result.ExchangeID = saved.ID
}
