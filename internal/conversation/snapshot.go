package conversation

import "github.com/alexr72/wpcv/internal/core"

// Snapshot captures the token usage of a conversation at a point in time.
type Snapshot struct {
	ID              core.ConversationID `json:"id"`
	Limit           int                 `json:"limit"`
	Headroom        int                 `json:"headroom"`
	UsedTokens      int                 `json:"used_tokens"`
	RemainingTokens int                 `json:"remaining_tokens"`
	Messages        []MessageStats      `json:"messages,omitempty"`
}

type MessageStats struct {
	Role   core.Role `json:"role"`
	Tokens int       `json:"tokens"`
}

func (s *Store) Snapshot(id core.ConversationID, estimator Estimator, budget Budget) (Snapshot, error) {
	history, err := s.History(id)
	if err != nil {
		return Snapshot{}, err
	}

	stats := make([]MessageStats, 0, len(history))
	used := 0
	for _, msg := range history {
		tokens := estimator.Estimate(msg.Content)
		used += tokens
		stats = append(stats, MessageStats{Role: msg.Role, Tokens: tokens})
	}

	return Snapshot{
		ID:              id,
		Limit:           budget.Limit,
		Headroom:        budget.Headroom,
		UsedTokens:      used,
		RemainingTokens: budget.Limit - budget.Headroom - used,
		Messages:        stats,
	}, nil
}
