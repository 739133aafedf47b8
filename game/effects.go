package game

import "time"

// delivery is an outbound message bound for a subset of the room (nil "to"
// means every current participant).
type delivery struct {
	to  []string
	msg Outbound
}

type deadline struct {
	at    time.Time
	token int64
}

type award struct {
	userID string
	points int
	reason string
}

// effects is what a transition wants done after its snapshot commits.
// Nothing here runs before the CAS succeeds; broadcasts happen
// asynchronously and never roll the state back.
type effects struct {
	noop        bool
	deliveries  []delivery
	schedule    *deadline
	destroy     bool
	clearCanvas bool
	// claimWord is a dictionary word the transition dealt; it is consumed on
	// the day ledger only after the commit, so a retried transition burns
	// nothing.
	claimWord string
	awards    []award
}

var noopEffects = &effects{noop: true}

func (e *effects) broadcast(msg Outbound) *effects {
	e.deliveries = append(e.deliveries, delivery{msg: msg})
	return e
}

func (e *effects) sendTo(userID string, msg Outbound) *effects {
	e.deliveries = append(e.deliveries, delivery{to: []string{userID}, msg: msg})
	return e
}

func stateDelivery(snap *RoomSnapshot) Outbound {
	return Outbound{Type: MsgRoomState, RoomID: snap.ID, Data: snap.View()}
}
