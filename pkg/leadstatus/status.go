// Package leadstatus defines the closed set of lead pipeline statuses, the
// substatuses each status admits, and what kind of schedule a status/substatus
// pair implies. Display labels live in labels.go and are kept separate from the
// transition rules.
package leadstatus

// Status is the primary pipeline stage of a lead.
type Status string

const (
	New                Status = "new"
	NotConnected       Status = "not_connected"
	Interested         Status = "interested"
	FollowUp           Status = "follow_up"
	NotInterested      Status = "not_interested"
	CallDisconnected   Status = "call_disconnected"
	LocationMismatch   Status = "location_mismatch"
	BudgetMismatch     Status = "budget_mismatch"
	PossessionMismatch Status = "possession_mismatch"
	DoNotDisturb       Status = "do_not_disturb"
	SiteVisitDone      Status = "site_visit_done"
)

// Substatus refines why a lead sits in its status. Values are only meaningful
// together with the status that defines them.
type Substatus string

const (
	// not_connected
	Ringing                  Substatus = "ringing"
	SwitchedOff              Substatus = "switched_off"
	CallBusy                 Substatus = "call_busy"
	NotConnectedDisconnected Substatus = "call_disconnected"
	InvalidNumber            Substatus = "invalid_number"

	// interested
	SiteVisitScheduledWithDate Substatus = "site_visit_scheduled_with_date"
	SiteVisitScheduledNoDate   Substatus = "site_visit_scheduled_no_date"
	InterestedFollowUp         Substatus = "follow_up"

	// not_interested
	NotActivelySearching   Substatus = "not_actively_searching"
	RequireMoreThan6Months Substatus = "require_more_than_6_months"
	NotTheRightParty       Substatus = "not_the_right_party"

	// call_disconnected
	HangUpWhileTalking Substatus = "hang_up_while_talking"
	CallDrop           Substatus = "call_drop"

	// location_mismatch
	LookingForOtherLocation Substatus = "looking_for_other_location"
	LookingForOtherCity     Substatus = "looking_for_other_city"

	// budget_mismatch
	BudgetIsLow  Substatus = "budget_is_low"
	BudgetIsHigh Substatus = "budget_is_high"

	// possession_mismatch
	LookingForReadyToMove       Substatus = "looking_for_ready_to_move"
	LookingForUnderConstruction Substatus = "looking_for_under_construction"

	// do_not_disturb
	AlreadyInTouchWithBuilder Substatus = "already_in_touch_with_builder"
	DealClosed                Substatus = "deal_closed"
	PlanDrop                  Substatus = "plan_drop"
	PlanPostponed             Substatus = "plan_postponed"
	AlreadyPurchased          Substatus = "already_purchased"
	DNC                       Substatus = "dnc"

	// site_visit_done
	InterestedInRevisit Substatus = "interested_in_revisit"
	PlanCancelled       Substatus = "plan_cancelled"
)

// ScheduleKind says which pending occurrence a transition creates.
type ScheduleKind int

const (
	ScheduleNone ScheduleKind = iota
	ScheduleFollowUp
	ScheduleVisit
	ScheduleRevisit
)

// order is the canonical status order used by catalogs, counts and exports.
var order = []Status{
	New,
	NotConnected,
	Interested,
	FollowUp,
	NotInterested,
	CallDisconnected,
	LocationMismatch,
	BudgetMismatch,
	PossessionMismatch,
	DoNotDisturb,
	SiteVisitDone,
}

// substatuses is the status -> allowed substatus table. A status mapped to an
// empty list admits no substatus at all.
var substatuses = map[Status][]Substatus{
	New:                {},
	NotConnected:       {Ringing, SwitchedOff, CallBusy, NotConnectedDisconnected, InvalidNumber},
	Interested:         {SiteVisitScheduledWithDate, SiteVisitScheduledNoDate, InterestedFollowUp},
	FollowUp:           {},
	NotInterested:      {NotActivelySearching, RequireMoreThan6Months, NotTheRightParty},
	CallDisconnected:   {HangUpWhileTalking, CallDrop},
	LocationMismatch:   {LookingForOtherLocation, LookingForOtherCity},
	BudgetMismatch:     {BudgetIsLow, BudgetIsHigh},
	PossessionMismatch: {LookingForReadyToMove, LookingForUnderConstruction},
	DoNotDisturb:       {AlreadyInTouchWithBuilder, DealClosed, PlanDrop, PlanPostponed, AlreadyPurchased, DNC},
	SiteVisitDone:      {InterestedInRevisit, PlanCancelled},
}

// All returns every status in canonical order.
func All() []Status {
	out := make([]Status, len(order))
	copy(out, order)
	return out
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := substatuses[s]
	return ok
}

// Substatuses returns the substatuses allowed for s, nil for an unknown status.
func (s Status) Substatuses() []Substatus {
	subs, ok := substatuses[s]
	if !ok {
		return nil
	}
	out := make([]Substatus, len(subs))
	copy(out, subs)
	return out
}

// Allows reports whether sub may accompany s. The empty substatus is always allowed.
func (s Status) Allows(sub Substatus) bool {
	if sub == "" {
		return s.Valid()
	}
	for _, candidate := range substatuses[s] {
		if candidate == sub {
			return true
		}
	}
	return false
}

// Terminal reports whether reaching s cancels every pending schedule.
func (s Status) Terminal() bool {
	switch s {
	case NotInterested, DoNotDisturb:
		return true
	default:
		return false
	}
}

// Schedule returns what kind of occurrence the pair schedules and whether a
// date is mandatory for it.
func Schedule(s Status, sub Substatus) (kind ScheduleKind, dateRequired bool) {
	switch s {
	case FollowUp:
		return ScheduleFollowUp, true
	case Interested:
		switch sub {
		case InterestedFollowUp:
			return ScheduleFollowUp, true
		case SiteVisitScheduledWithDate:
			return ScheduleVisit, true
		}
	case SiteVisitDone:
		if sub == InterestedInRevisit {
			return ScheduleRevisit, false
		}
	}
	return ScheduleNone, false
}

// ParseStatus converts raw input into a Status, reporting whether it is known.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.Valid()
}
