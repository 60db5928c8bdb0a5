package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alexr72/wpcv/internal/agent"
	"github.com/alexr72/wpcv/internal/conversation"
	"github.com/alexr72/wpcv/internal/orchestrator"
	"github.com/alexr72/wpcv/internal/provider"
)

// toStatus maps core error kinds to gRPC codes, keeping the original message.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	var (
		notFound  *agent.AgentNotFoundError
		unknown   *conversation.UnknownConversationError
		timeout   *provider.TimeoutError
		upstream  *provider.UpstreamError
		transport *provider.TransportError
	)

	code := codes.Internal
	switch {
	case errors.As(err, &notFound), errors.As(err, &unknown):
		code = codes.NotFound
	case errors.Is(err, orchestrator.ErrConversationBusy):
		code = codes.FailedPrecondition
	case errors.As(err, &timeout):
		code = codes.DeadlineExceeded
	case errors.As(err, &upstream), errors.As(err, &transport):
		code = codes.Unavailable
	case errors.Is(err, provider.ErrCancelled), errors.Is(err, context.Canceled):
		code = codes.Canceled
	}

	return status.Error(code, err.Error())
}

// RemoteError is a failure reported by the server.
type RemoteError struct {
	Code    codes.Code
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Is lets callers test remote failures against the local sentinels.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case orchestrator.ErrConversationBusy:
		return e.Code == codes.FailedPrecondition
	case provider.ErrCancelled:
		return e.Code == codes.Canceled
	}
	return false
}

func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	s, ok := status.FromError(err)
	if !ok {
		return err
	}
	return &RemoteError{Code: s.Code(), Message: s.Message()}
}
