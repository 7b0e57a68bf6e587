package app

import (
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

func deliver(conns []ConnSnap, f core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for _, c := range conns {
		if err := c.Conn.TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, c.ID)
			continue
		}
		res.SendTo++
	}
	return res
}

// SendToUser delivers f to every live connection of uid.
func (r *Registry) SendToUser(uid domain.UserID, f core.Frame) core.PublishResult {
	return deliver(r.ConnectionsOf(uid), f)
}

// SendToUsers delivers f to every connection of every listed user except skip.
func (r *Registry) SendToUsers(uids []domain.UserID, skip domain.UserID, f core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for _, uid := range uids {
		if skip != "" && uid == skip {
			continue
		}
		res.Merge(r.SendToUser(uid, f))
	}
	log.Debug().Str("module", "app.fanout").Int("users", len(uids)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
