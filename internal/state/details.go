package state

import (
	"image"
	"time"
)

// Details is the payload attached to a state when it is entered.
type Details interface {
	Kind() Kind
}

type IdleDetails struct {
	Action string `json:"action,omitempty"`
	Error  string `json:"error,omitempty"`
}

type CastingDetails struct {
	Action  string        `json:"action"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

type FishingDetails struct {
	Action      string        `json:"action"`
	ScanTimeout time.Duration `json:"scan_timeout"`
}

type PurchasingDetails struct {
	Sequence         string `json:"sequence"`
	LoopsPerPurchase int    `json:"loops_per_purchase"`
}

type MenuOpeningDetails struct {
	Action string `json:"action"`
	Amount int    `json:"amount"`
}

type TypingDetails struct {
	Action string `json:"action"`
	Amount int    `json:"amount"`
}

type ClickingDetails struct {
	Action string      `json:"action"`
	Point  image.Point `json:"point"`
}

func (IdleDetails) Kind() Kind        { return Idle }
func (CastingDetails) Kind() Kind     { return Casting }
func (FishingDetails) Kind() Kind     { return Fishing }
func (PurchasingDetails) Kind() Kind  { return Purchasing }
func (MenuOpeningDetails) Kind() Kind { return MenuOpening }
func (TypingDetails) Kind() Kind      { return Typing }
func (ClickingDetails) Kind() Kind    { return Clicking }

// Actions recorded with IdleDetails.
const (
	ActionLoopStart       = "loop_start"
	ActionFishDetected    = "fish_detected"
	ActionFishCaught      = "fish_caught_processing"
	ActionForceTimeout    = "force_timeout_break"
	ActionLoopComplete    = "detection_loop_complete"
	ActionErrorRecovery   = "error_recovery"
	ActionRecoveryReset   = "recovery_reset"
	ActionPurchaseAborted = "purchase_aborted"
	ActionStopped         = "stopped"
)
