package models

import "time"

// Plan classifies how an account is billed
type Plan string

const (
	PlanUnset      Plan = ""
	PlanIndividual Plan = "individual"
	PlanCorporate  Plan = "corporate"
)

// ParsePlan maps free text from the plan keyboard to a Plan
func ParsePlan(text string) (Plan, bool) {
	switch text {
	case "Персональный":
		return PlanIndividual, true
	case "Корпоративный":
		return PlanCorporate, true
	}
	return PlanUnset, false
}

// Account represents one registered Telegram user
type Account struct {
	ID       int64 // Telegram user ID
	LedgerID int64
	Username string
	FullName string
	Plan     Plan
}

// Ledger represents the token balance an account draws from.
// Several accounts may share one ledger (corporate plan).
type Ledger struct {
	ID              int64
	OwnerID         int64
	Amount          int64
	LinkCode        string     // empty means no code issued yet
	SubscriptionEnd *time.Time // nil means no subscription
}

// Subscribed reports whether the ledger has an unexpired subscription.
// subscription_end is a date, so it stays valid through that whole day.
func (l *Ledger) Subscribed(now time.Time) bool {
	if l.SubscriptionEnd == nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !l.SubscriptionEnd.Before(today)
}
