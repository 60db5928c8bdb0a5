package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alexr72/wpcv/internal/agent"
	"github.com/alexr72/wpcv/internal/core"
	"github.com/alexr72/wpcv/internal/orchestrator"
)

// SubmitReply is the client-side view of a completed exchange.
type SubmitReply struct {
	ConversationID core.ConversationID
	ExchangeID     string
	Agent          string
	Text           string
	PatchPath      string
	PatchError     string
	PatchAdded     int
	PatchRemoved   int
	PatchCreated   bool
	PatchPreview   string
	Trimmed        int
	JournalError   string
	Findings       []string
}

type Status struct {
	Bind      string
	DataDir   string
	StartedAt string
	Uptime    string
}

type Client struct {
	conn *grpc.ClientConn
}

func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in map[string]any) (map[string]any, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, out); err != nil {
		return nil, fromStatus(err)
	}
	return out.AsMap(), nil
}

func (c *Client) NewConversation(ctx context.Context) (core.ConversationID, error) {
	out, err := c.invoke(ctx, methodNewConversation, nil)
	if err != nil {
		return "", err
	}
	return core.ConversationID(stringField(out, "conversation_id")), nil
}

func (c *Client) Submit(ctx context.Context, req orchestrator.Request) (SubmitReply, error) {
	out, err := c.invoke(ctx, methodSubmit, map[string]any{
		"conversation_id": string(req.ConversationID),
		"agent":           req.Agent,
		"prompt":          req.Prompt,
		"working_dir":     req.WorkingDir,
	})
	if err != nil {
		return SubmitReply{}, err
	}

	reply := SubmitReply{
		ConversationID: core.ConversationID(stringField(out, "conversation_id")),
		ExchangeID:     stringField(out, "exchange_id"),
		Agent:          stringField(out, "agent"),
		Text:           stringField(out, "text"),
		PatchPath:      stringField(out, "patch_path"),
		PatchError:     stringField(out, "patch_error"),
		PatchAdded:     intField(out, "patch_added"),
		PatchRemoved:   intField(out, "patch_removed"),
		Trimmed:        intField(out, "trimmed"),
		PatchPreview:   stringField(out, "patch_preview"),
		JournalError:   stringField(out, "journal_error"),
	}
	reply.PatchCreated, _ = out["patch_created"].(bool)

	if findings, ok := out["findings"].([]any); ok {
		for _, raw := range findings {
			if f, ok := raw.(map[string]any); ok {
				reply.Findings = append(reply.Findings, stringField(f, "check")+": "+stringField(f, "message"))
			}
		}
	}

	return reply, nil
}

// DeleteConversation removes a conversation held by the server.
func (c *Client) DeleteConversation(ctx context.Context, id core.ConversationID) error {
	_, err := c.invoke(ctx, methodDelete, map[string]any{"conversation_id": string(id)})
	return err
}

func (c *Client) ListAgents(ctx context.Context) ([]agent.Summary, error) {
	out, err := c.invoke(ctx, methodListAgents, nil)
	if err != nil {
		return nil, err
	}

	raw, _ := out["agents"].([]any)
	summaries := make([]agent.Summary, 0, len(raw))
	for _, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		hasSecret, _ := fields["has_secret"].(bool)
		summaries = append(summaries, agent.Summary{
			Name:      stringField(fields, "name"),
			Model:     stringField(fields, "model"),
			URL:       stringField(fields, "url"),
			Format:    stringField(fields, "format"),
			HasSecret: hasSecret,
		})
	}
	return summaries, nil
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	out, err := c.invoke(ctx, methodStatus, nil)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Bind:      stringField(out, "bind"),
		DataDir:   stringField(out, "data_dir"),
		StartedAt: stringField(out, "started_at"),
		Uptime:    stringField(out, "uptime"),
	}, nil
}

func intField(fields map[string]any, key string) int {
	n, _ := fields[key].(float64)
	return int(n)
}
