package leadstatus

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var statusLabels = map[Status]string{
	New:                "New",
	NotConnected:       "Not Connected",
	Interested:         "Interested",
	FollowUp:           "Follow Up",
	NotInterested:      "Not Interested",
	CallDisconnected:   "Call Disconnected",
	LocationMismatch:   "Location Mismatch",
	BudgetMismatch:     "Budget Mismatch",
	PossessionMismatch: "Possession Mismatch",
	DoNotDisturb:       "Do Not Disturb",
	SiteVisitDone:      "Site Visit Done",
}

var substatusLabels = map[Substatus]string{
	Ringing:                     "Ringing",
	SwitchedOff:                 "Switched Off",
	CallBusy:                    "Call Busy",
	NotConnectedDisconnected:    "Call Disconnected",
	InvalidNumber:               "Invalid Number",
	SiteVisitScheduledWithDate:  "Site Visit Scheduled (with date)",
	SiteVisitScheduledNoDate:    "Site Visit Scheduled (no date)",
	InterestedFollowUp:          "Follow Up",
	NotActivelySearching:        "Not Actively Searching",
	RequireMoreThan6Months:      "Requires More Than 6 Months",
	NotTheRightParty:            "Not The Right Party",
	HangUpWhileTalking:          "Hung Up While Talking",
	CallDrop:                    "Call Drop",
	LookingForOtherLocation:     "Looking For Other Location",
	LookingForOtherCity:         "Looking For Other City",
	BudgetIsLow:                 "Budget Is Low",
	BudgetIsHigh:                "Budget Is High",
	LookingForReadyToMove:       "Looking For Ready To Move",
	LookingForUnderConstruction: "Looking For Under Construction",
	AlreadyInTouchWithBuilder:   "Already In Touch With Builder",
	DealClosed:                  "Deal Closed",
	PlanDrop:                    "Plan Dropped",
	PlanPostponed:               "Plan Postponed",
	AlreadyPurchased:            "Already Purchased",
	DNC:                         "Do Not Call",
	InterestedInRevisit:         "Interested In Revisit",
	PlanCancelled:               "Plan Cancelled",
}

var titleCaser = cases.Title(language.English)

// Label returns the display label for a status.
func Label(s Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return humanize(string(s))
}

// SubstatusLabel returns the display label for a substatus.
func SubstatusLabel(sub Substatus) string {
	if sub == "" {
		return ""
	}
	if label, ok := substatusLabels[sub]; ok {
		return label
	}
	return humanize(string(sub))
}

func humanize(key string) string {
	return titleCaser.String(strings.ReplaceAll(key, "_", " "))
}

// Option is one selectable substatus in the catalog.
type Option struct {
	Value Substatus `json:"value"`
	Label string    `json:"label"`
}

// CatalogEntry describes one status for UIs that render transition forms.
type CatalogEntry struct {
	Value        Status   `json:"value"`
	Label        string   `json:"label"`
	Terminal     bool     `json:"terminal"`
	Substatuses  []Option `json:"substatuses"`
	RequiresDate bool     `json:"requiresDate"`
}

// Catalog returns every status with its labelled substatuses in canonical order.
func Catalog() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(order))
	for _, s := range order {
		_, statusNeedsDate := Schedule(s, "")
		entry := CatalogEntry{
			Value:        s,
			Label:        Label(s),
			Terminal:     s.Terminal(),
			Substatuses:  []Option{},
			RequiresDate: statusNeedsDate,
		}
		for _, sub := range substatuses[s] {
			entry.Substatuses = append(entry.Substatuses, Option{Value: sub, Label: SubstatusLabel(sub)})
		}
		entries = append(entries, entry)
	}
	return entries
}
