// Package notify resolves notification recipients and fans messages out to
// them.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/inamasaru/leadsync/internal/genre"
)

// Sender delivers one text message to one recipient.
type Sender interface {
	Push(ctx context.Context, userID, text string) error
}

// Resolve builds the recipient list: every genre's recipients in configured
// order, then the fallback ID. Empty IDs are skipped and duplicates collapse
// to their first occurrence.
func Resolve(genres []genre.Genre, fallbackID string) []string {
	var ids []string
	for _, g := range genres {
		ids = append(ids, g.NotifyUserIDs...)
	}
	if fallbackID != "" {
		ids = append(ids, fallbackID)
	}

	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// Fanout sends text to every recipient. Each send is isolated: a failure is
// logged and the remaining recipients are still attempted. Returns the number
// of successful sends.
func Fanout(ctx context.Context, s Sender, ids []string, text string) int {
	sent := 0
	for _, id := range ids {
		if err := s.Push(ctx, id, text); err != nil {
			zap.L().Error("failed to send notification",
				zap.String("user_id", id),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}
