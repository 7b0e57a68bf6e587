package app

import (
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(uid domain.UserID, cid core.ConnectionID) BackpressureAction
}

// SimplePolicy kicks slow connections; a kicked connection goes through
// the same cleanup as any transport close.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.UserID, core.ConnectionID) BackpressureAction {
	return KickMember
}

// LenientPolicy only drops the frame.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(domain.UserID, core.ConnectionID) BackpressureAction {
	return DropFrame
}
