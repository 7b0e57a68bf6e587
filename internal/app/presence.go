package app

import (
	"context"
	"fmt"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Presence tells a user's online friends about status changes.
// Offline friends are skipped; they read the status from the profile
// when they connect.
type Presence struct {
	Registry *Registry
	Friends  core.FriendStore
}

func (p *Presence) Announce(ctx context.Context, uid domain.UserID, status domain.Status) (core.PublishResult, error) {
	friends, err := p.Friends.FriendsOf(ctx, uid)
	if err != nil {
		return core.PublishResult{}, fmt.Errorf("%w: friends of %s: %w", core.ErrPersistence, uid, err)
	}
	f, err := core.Encode(core.FriendStatusChangeEvent{
		Type:   core.EvFriendStatusChange,
		UserID: uid,
		Status: status,
	})
	if err != nil {
		return core.PublishResult{}, err
	}

	res := core.PublishResult{}
	online := 0
	for _, friend := range friends {
		conns := p.Registry.ConnectionsOf(friend)
		if len(conns) == 0 {
			continue
		}
		online++
		res.Merge(deliver(conns, f))
	}
	log.Info().Str("module", "app.presence").Str("user", string(uid)).Str("status", string(status)).
		Int("friends", len(friends)).Int("online", online).Msg("presence announced")
	return res, nil
}
