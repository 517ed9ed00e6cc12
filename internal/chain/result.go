package chain

import "github.com/Gimel-Foundation/flowguard/internal/blockerr"

// Status is the outcome a check slot hands back to the chain (§2/§4.1).
type Status int

const (
	// StatusPass admits the call; later check slots still run.
	StatusPass Status = iota
	// StatusBlocked denies the call outright and stops the chain.
	StatusBlocked
	// StatusWait admits the call after the chain sleeps WaitNanos (a
	// throttling controller queueing the caller rather than rejecting it).
	StatusWait
)

// Result is what a check slot, and ultimately the whole chain, returns.
type Result struct {
	Status    Status
	Err       *blockerr.Error
	WaitNanos int64
}

// Pass builds a passing Result.
func Pass() Result { return Result{Status: StatusPass} }

// Blocked builds a blocking Result carrying the reason.
func Blocked(err *blockerr.Error) Result { return Result{Status: StatusBlocked, Err: err} }

// Wait builds a Result that admits the call after sleeping waitNanos.
func Wait(waitNanos int64) Result { return Result{Status: StatusWait, WaitNanos: waitNanos} }
