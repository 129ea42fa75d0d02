package flow

import (
	"context"

	"github.com/ArcanaCorp/RIZZO/internal/domain"
	"github.com/ArcanaCorp/RIZZO/internal/store"
	"github.com/containerd/errdefs"
)

// loadChatState reads the conversational cursor for one (tenant, chat)
// pair plus the tenant's full chat map. A missing session or chat entry
// yields the idle state.
func loadChatState(ctx context.Context, repo store.Repository, tenantID, chatID string) (domain.ChatState, map[string]domain.ChatState, error) {
	sess, err := repo.GetSession(ctx, tenantID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return domain.ChatState{}, map[string]domain.ChatState{}, nil
		}
		return domain.ChatState{}, nil, err
	}

	chats := sess.Chats
	if chats == nil {
		chats = map[string]domain.ChatState{}
	}
	return chats[chatID], chats, nil
}

// saveChatState writes one chat's cursor back by rewriting the tenant's
// whole chat map. The bot manager serializes message handling per tenant,
// so two chats of one tenant cannot interleave this read-modify-write.
func saveChatState(ctx context.Context, repo store.Repository, tenantID, chatID string, chats map[string]domain.ChatState, state domain.ChatState) error {
	updated := make(map[string]domain.ChatState, len(chats)+1)
	for k, v := range chats {
		updated[k] = v
	}
	updated[chatID] = state

	_, err := repo.UpdateSession(ctx, tenantID, domain.SessionUpdate{Chats: updated})
	return err
}
