// Package journal is the durable, append-only log of completed exchanges.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexr72/wpcv/internal/config"
	"github.com/alexr72/wpcv/internal/core"
)

// Record is one exchange as the user saw it.
type Record struct {
	ID             string              `json:"id"`
	Timestamp      time.Time           `json:"timestamp"`
	ConversationID core.ConversationID `json:"conversation_id"`
	Agent          string              `json:"agent"`
	User           string              `json:"user,omitempty"`
	Prompt         string              `json:"prompt"`
	Response       string              `json:"response"`
	Revision       string              `json:"revision,omitempty"`
	PatchPath      string              `json:"patch_path,omitempty"`
	PatchError     string              `json:"patch_error,omitempty"`
}

// Filter narrows Records. Zero values match everything.
type Filter struct {
	ConversationID core.ConversationID
	Agent          string
	Limit          int
}

func (f Filter) match(r Record) bool {
	if f.ConversationID != "" && r.ConversationID != f.ConversationID {
		return false
	}
	if f.Agent != "" && r.Agent != f.Agent {
		return false
	}
	return true
}

type Journal interface {
	Append(ctx context.Context, record Record) (Record, error)
	// Records returns matching records, newest first.
	Records(ctx context.Context, filter Filter) ([]Record, error)
	Close() error
}

// Open returns the journal for the configured driver.
func Open(cfg config.Config) (Journal, error) {
	switch cfg.Journal.Driver {
	case "", "jsonl":
		return NewFileJournal(cfg.JournalPath()), nil
	case "sqlite":
		return OpenSQLite(cfg.JournalPath())
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", cfg.Journal.Driver)
	}
}

func prepare(record Record) Record {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	return record
}
