package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/alexr72/wpcv/internal/app"
	"github.com/alexr72/wpcv/internal/conversation"
	"github.com/alexr72/wpcv/internal/core"
	"github.com/alexr72/wpcv/internal/orchestrator"
	"github.com/alexr72/wpcv/internal/rpc"
)

// exchange is what the front ends print after a prompt completes.
type exchange struct {
	ConversationID core.ConversationID
	Agent          string
	Text           string
	PatchPath      string
	PatchError     string
	Added          int
	Removed        int
	Created        bool
	Preview        string
	Trimmed        int
	Findings       []string
	JournalError   string
}

// backend runs prompts either in-process or against a wpcv server.
type backend interface {
	Resume(ctx context.Context, id core.ConversationID) (core.ConversationID, error)
	NewConversation(ctx context.Context) (core.ConversationID, error)
	Submit(ctx context.Context, req orchestrator.Request) (exchange, error)
	Close() error
}

func openBackend(a *App) (backend, error) {
	if a.Remote {
		client, err := rpc.Dial(a.ServerAddr)
		if err != nil {
			return nil, err
		}
		return &remoteBackend{client: client}, nil
	}

	services, err := app.NewServices(a.Config)
	if err != nil {
		return nil, err
	}
	return &localBackend{services: services}, nil
}

type localBackend struct {
	services app.Services
}

// Resume reopens id from disk, or starts a new conversation when it is gone.
func (b *localBackend) Resume(ctx context.Context, id core.ConversationID) (core.ConversationID, error) {
	if id != "" {
		err := b.services.Store.Open(id)
		if err == nil {
			return id, nil
		}
		var unknown *conversation.UnknownConversationError
		if !errors.As(err, &unknown) {
			return "", err
		}
	}
	return b.NewConversation(ctx)
}

func (b *localBackend) NewConversation(context.Context) (core.ConversationID, error) {
	return b.services.Orchestrator.NewConversation()
}

func (b *localBackend) Submit(ctx context.Context, req orchestrator.Request) (exchange, error) {
	outcomes, err := b.services.Orchestrator.SubmitAsync(ctx, req)
	if err != nil {
		return exchange{}, err
	}

	stop := startIndicator(os.Stderr)
	outcome := <-outcomes
	stop()

	if outcome.Err != nil {
		return exchange{}, outcome.Err
	}
	return exchangeFromResult(outcome.Result), nil
}

func (b *localBackend) Close() error {
	return b.services.Close()
}

func exchangeFromResult(result orchestrator.Result) exchange {
	ex := exchange{
		ConversationID: result.ConversationID,
		Agent:          result.Agent,
		Text:           result.Text,
		PatchPath:      result.PatchPath,
		Trimmed:        result.Trim.Removed,
	}
	if result.PatchErr != nil {
		ex.PatchError = result.PatchErr.Error()
	}
	if result.Patch != nil {
		ex.Added = result.Patch.Stats.Added
		ex.Removed = result.Patch.Stats.Removed
		ex.Created = result.Patch.Created
		ex.Preview = result.Patch.Preview
	}
	if result.Validation != nil {
		for _, f := range result.Validation.Findings() {
			ex.Findings = append(ex.Findings, fmt.Sprintf("%s: %s", f.Check, f.Message))
		}
	}
	if result.JournalErr != nil {
		ex.JournalError = result.JournalErr.Error()
	}
	return ex
}

type remoteBackend struct {
	client *rpc.Client
}

// Resume trusts id because the server owns the conversation store.
func (b *remoteBackend) Resume(ctx context.Context, id core.ConversationID) (core.ConversationID, error) {
	if id != "" {
		return id, nil
	}
	return b.NewConversation(ctx)
}

func (b *remoteBackend) NewConversation(ctx context.Context) (core.ConversationID, error) {
	id, err := b.client.NewConversation(ctx)
	if err != nil {
		return "", serverError(err)
	}
	return id, nil
}

func (b *remoteBackend) Submit(ctx context.Context, req orchestrator.Request) (exchange, error) {
	reply, err := b.client.Submit(ctx, req)
	if err != nil {
		return exchange{}, serverError(err)
	}
	return exchange{
		ConversationID: reply.ConversationID,
		Agent:          reply.Agent,
		Text:           reply.Text,
		PatchPath:      reply.PatchPath,
		PatchError:     reply.PatchError,
		Added:          reply.PatchAdded,
		Removed:        reply.PatchRemoved,
		Created:        reply.PatchCreated,
		Preview:        reply.PatchPreview,
		Trimmed:        reply.Trimmed,
		Findings:       reply.Findings,
		JournalError:   reply.JournalError,
	}, nil
}

func (b *remoteBackend) Close() error {
	return b.client.Close()
}

func serverError(err error) error {
	var remote *rpc.RemoteError
	if errors.As(err, &remote) {
		return err
	}
	return fmt.Errorf("server unreachable: %w", err)
}
