package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alexr72/wpcv/internal/agent"
	"github.com/alexr72/wpcv/internal/core"
	"github.com/alexr72/wpcv/internal/orchestrator"
)

type Submitter interface {
	NewConversation() (core.ConversationID, error)
	Submit(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
	DeleteConversation(id core.ConversationID) error
}

type AgentLister interface {
	List() []agent.Summary
}

type Server struct {
	orch      Submitter
	agents    AgentLister
	bind      string
	dataDir   string
	startedAt time.Time
}

func NewServer(orch Submitter, agents AgentLister, bind, dataDir string) *Server {
	return &Server{orch: orch, agents: agents, bind: bind, dataDir: dataDir, startedAt: time.Now()}
}

// Serve blocks until ctx is cancelled or the listener fails, then stops gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	grpcServer := grpc.NewServer()
	RegisterOrchestratorService(grpcServer, s)

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(listener)
	}()

	slog.Info("server listening", "address", listener.Addr().String())

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			slog.Warn("drain timeout, forcing shutdown")
			grpcServer.Stop()
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func (s *Server) NewConversation(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.orch.NewConversation()
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"conversation_id": string(id)})
}

func (s *Server) Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.AsMap()

	req := orchestrator.Request{
		ConversationID: core.ConversationID(stringField(fields, "conversation_id")),
		Agent:          stringField(fields, "agent"),
		Prompt:         stringField(fields, "prompt"),
		WorkingDir:     stringField(fields, "working_dir"),
	}

	if req.ConversationID == "" {
		return nil, status.Error(codes.InvalidArgument, "conversation_id is required")
	}
	if req.Prompt == "" {
		return nil, status.Error(codes.InvalidArgument, "prompt is required")
	}

	result, err := s.orch.Submit(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := structpb.NewStruct(encodeResult(result))
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode result: %v", err))
	}
	return out, nil
}

func (s *Server) DeleteConversation(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := core.ConversationID(stringField(in.AsMap(), "conversation_id"))
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "conversation_id is required")
	}
	if err := s.orch.DeleteConversation(id); err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"conversation_id": string(id)})
}

func (s *Server) ListAgents(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	var agents []any
	for _, summary := range s.agents.List() {
		agents = append(agents, map[string]any{
			"name":       summary.Name,
			"model":      summary.Model,
			"url":        summary.URL,
			"format":     summary.Format,
			"has_secret": summary.HasSecret,
		})
	}
	return structpb.NewStruct(map[string]any{"agents": agents})
}

func (s *Server) Status(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"bind":       s.bind,
		"data_dir":   s.dataDir,
		"started_at": s.startedAt.Format(time.RFC3339),
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func encodeResult(result orchestrator.Result) map[string]any {
	out := map[string]any{
		"conversation_id": string(result.ConversationID),
		"exchange_id":     result.ExchangeID,
		"agent":           result.Agent,
		"text":            result.Text,
		"patch_path":      result.PatchPath,
		"trimmed":         float64(result.Trim.Removed),
	}
	if result.PatchErr != nil {
		out["patch_error"] = result.PatchErr.Error()
	}
	if result.Patch != nil {
		out["patch_added"] = float64(result.Patch.Stats.Added)
		out["patch_removed"] = float64(result.Patch.Stats.Removed)
		out["patch_created"] = result.Patch.Created
		out["patch_preview"] = result.Patch.Preview
	}
	if result.JournalErr != nil {
		out["journal_error"] = result.JournalErr.Error()
	}
	if result.Validation != nil {
		var findings []any
		for _, f := range result.Validation.Findings() {
			findings = append(findings, map[string]any{"check": f.Check, "message": f.Message, "line": float64(f.Line)})
		}
		out["findings"] = findings
	}
	return out
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
