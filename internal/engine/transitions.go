// Package engine holds the request state machines as data. Nothing here
// performs I/O: callers apply the returned ledger deltas and notices.
package engine

import (
	"resourcehive/internal/common"
	"resourcehive/internal/models"
)

// Event drives an item-level transition
type Event string

const (
	EventApprove     Event = "approve"
	EventReject      Event = "reject"
	EventCancel      Event = "cancel"
	EventClaim       Event = "claim"
	EventReturn      Event = "return"
	EventComplete    Event = "complete"
	EventExpire      Event = "expire"
	EventMarkOverdue Event = "mark_overdue"
	EventActivate    Event = "activate"
)

// Notice names the user-visible message a transition produces
type Notice string

const (
	NoticeNone      Notice = ""
	NoticeApproved  Notice = "approved"
	NoticeRejected  Notice = "rejected"
	NoticeClaimed   Notice = "claimed"
	NoticeReturned  Notice = "returned"
	NoticeExpired   Notice = "expired"
	NoticeOverdue   Notice = "overdue"
	NoticeActivated Notice = "activated"
)

// rule deltas are multiples of the item quantity
type rule struct {
	next     models.ItemStatus
	onHand   int
	reserved int
	notice   Notice
}

type table map[models.ItemStatus]map[Event]rule

var transitions = map[models.RequestKind]table{
	models.RequestKindSupply: {
		models.ItemPending: {
			EventApprove: {next: models.ItemApproved, notice: NoticeApproved},
			EventReject:  {next: models.ItemRejected, notice: NoticeRejected},
			EventCancel:  {next: models.ItemCancelled},
		},
		models.ItemApproved: {
			EventClaim:  {next: models.ItemCompleted, onHand: -1, notice: NoticeClaimed},
			EventCancel: {next: models.ItemCancelled},
		},
	},
	models.RequestKindBorrow: {
		models.ItemPending: {
			EventApprove: {next: models.ItemApproved, reserved: 1, notice: NoticeApproved},
			EventReject:  {next: models.ItemRejected, notice: NoticeRejected},
			EventCancel:  {next: models.ItemCancelled},
			EventExpire:  {next: models.ItemExpired, notice: NoticeExpired},
		},
		models.ItemApproved: {
			EventReject: {next: models.ItemRejected, reserved: -1, notice: NoticeRejected},
			EventClaim:  {next: models.ItemActive, onHand: -1, reserved: -1, notice: NoticeClaimed},
			EventExpire: {next: models.ItemExpired, reserved: -1, notice: NoticeExpired},
			EventCancel: {next: models.ItemCancelled, reserved: -1},
		},
		models.ItemActive: {
			EventReturn:      {next: models.ItemReturned, onHand: 1, notice: NoticeReturned},
			EventMarkOverdue: {next: models.ItemOverdue, notice: NoticeOverdue},
		},
		models.ItemOverdue: {
			EventReturn: {next: models.ItemReturned, onHand: 1, notice: NoticeReturned},
		},
		models.ItemReturned: {
			EventComplete: {next: models.ItemCompleted},
		},
	},
	models.RequestKindReservation: {
		models.ItemPending: {
			EventApprove: {next: models.ItemApproved, reserved: 1, notice: NoticeApproved},
			EventReject:  {next: models.ItemRejected, notice: NoticeRejected},
			EventCancel:  {next: models.ItemCancelled},
			EventExpire:  {next: models.ItemExpired, notice: NoticeExpired},
		},
		models.ItemApproved: {
			EventReject:   {next: models.ItemRejected, reserved: -1, notice: NoticeRejected},
			EventExpire:   {next: models.ItemExpired, reserved: -1, notice: NoticeExpired},
			EventCancel:   {next: models.ItemCancelled, reserved: -1},
			EventActivate: {next: models.ItemActive, notice: NoticeActivated},
		},
		models.ItemActive: {
			EventComplete: {next: models.ItemCompleted},
		},
	},
}

// Outcome is the result of applying an event to an item
type Outcome struct {
	From          models.ItemStatus
	Next          models.ItemStatus
	OnHandDelta   int
	ReservedDelta int
	Notice        Notice
}

// Transition maps (kind, state, event) to the next state and ledger deltas.
// quantity is the approved quantity the deltas are scaled by.
func Transition(kind models.RequestKind, from models.ItemStatus, ev Event, quantity int) (Outcome, error) {
	states, ok := transitions[kind]
	if !ok {
		return Outcome{}, common.InvalidRequest("unknown request kind %q", kind)
	}
	r, ok := states[from][ev]
	if !ok {
		return Outcome{}, common.Conflict("cannot %s a %s %s item", ev, from, kind)
	}
	return Outcome{
		From:          from,
		Next:          r.next,
		OnHandDelta:   r.onHand * quantity,
		ReservedDelta: r.reserved * quantity,
		Notice:        r.notice,
	}, nil
}

// Can reports whether ev is defined for an item of kind in state from
func Can(kind models.RequestKind, from models.ItemStatus, ev Event) bool {
	_, ok := transitions[kind][from][ev]
	return ok
}

// Apply runs Transition for item and moves it to the next state.
// For approve, quantity becomes the item's approved quantity.
func Apply(kind models.RequestKind, item *models.RequestItem, ev Event, quantity int) (Outcome, error) {
	if ev != EventApprove {
		quantity = item.Quantity()
	}
	out, err := Transition(kind, item.Status, ev, quantity)
	if err != nil {
		return out, err
	}
	if ev == EventApprove {
		q := quantity
		item.ApprovedQuantity = &q
	}
	item.Status = out.Next
	return out, nil
}

var terminal = map[models.ItemStatus]bool{
	models.ItemRejected:  true,
	models.ItemCancelled: true,
	models.ItemCompleted: true,
	models.ItemExpired:   true,
}

// IsTerminal reports whether no further events apply to the status
func IsTerminal(status models.ItemStatus) bool {
	return terminal[status]
}

// HoldsReserve reports whether an item in this state counts toward its stock row's reserved
func HoldsReserve(kind models.RequestKind, status models.ItemStatus) bool {
	return kind.Reserves() && status == models.ItemApproved
}
