package core

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

type ConversationID string

type RequestID string

const idTimestampLayout = "20060102T150405.000000000"

func NewConversationID() ConversationID {
	return ConversationID("conv_" + timestamp() + "_" + randomSeed())
}

func NewRequestID() RequestID {
	return RequestID("req_" + timestamp() + "_" + randomSeed())
}

// CreatedAt recovers the creation time encoded in a conversation id, or the zero time.
func (id ConversationID) CreatedAt() time.Time {
	s, ok := strings.CutPrefix(string(id), "conv_")
	if !ok {
		return time.Time{}
	}

	stamp, _, _ := strings.Cut(s, "_")
	t, err := time.Parse(idTimestampLayout, stamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

func timestamp() string {
	return time.Now().UTC().Format(idTimestampLayout)
}

func randomSeed() string {
	buffer := make([]byte, 6)
	_, _ = rand.Read(buffer)
	return hex.EncodeToString(buffer)
}
