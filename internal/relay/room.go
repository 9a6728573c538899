package relay

import (
	"sort"

	"github.com/rakimsSpiritual/tpsc-final/internal/signaling"
)

// Room groups the participants of one meeting. Membership is keyed by
// connection id; a room with zero members is deleted immediately by the hub
// and never lingers.
type Room struct {
	// ID is the meeting identifier.
	ID string

	// Members maps connection id to the client bound to it.
	Members map[string]*Client
}

func newRoom(id string) *Room {
	return &Room{
		ID:      id,
		Members: make(map[string]*Client),
	}
}

// membersExcept returns the member records of everyone but the given
// connection, ordered by identity so the snapshot is deterministic.
func (r *Room) membersExcept(connID string) []signaling.Member {
	members := make([]signaling.Member, 0, len(r.Members))
	for id, c := range r.Members {
		if id == connID {
			continue
		}
		members = append(members, signaling.Member{ConnID: id, UserID: c.UserID})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members
}

// broadcast queues msg for every member except the given connection.
// Delivery is best effort: a member with a full send buffer misses the
// message rather than stalling the hub.
func (r *Room) broadcast(exceptConnID string, msg *signaling.Message) {
	for id, c := range r.Members {
		if id == exceptConnID {
			continue
		}
		select {
		case c.Send <- msg:
		default:
		}
	}
}
