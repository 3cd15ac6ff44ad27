package scheduler

import "time"

// TimerName identifies one of the scheduler's timers.
type TimerName int

const (
	TimerShow TimerName = iota + 1
	TimerAutoHide
	TimerFollowUp
	TimerActiveReturnCheck
	TimerReturning
)

// TimerNames lists every timer in declaration order.
func TimerNames() []TimerName {
	return []TimerName{TimerShow, TimerAutoHide, TimerFollowUp, TimerActiveReturnCheck, TimerReturning}
}

func (n TimerName) String() string {
	switch n {
	case TimerShow:
		return "show"
	case TimerAutoHide:
		return "auto_hide"
	case TimerFollowUp:
		return "follow_up"
	case TimerActiveReturnCheck:
		return "active_return_check"
	case TimerReturning:
		return "returning"
	default:
		return "unknown"
	}
}

// ShowPayload is the data of a fired show timer.
type ShowPayload struct {
	Type string `json:"type"`
}

// Timer is the handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc arms f to run once after d. The default wraps time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
