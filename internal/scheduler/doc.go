// Package scheduler arms the named, cancellable timers that drive tip
// decisions.
//
// # Timers
//
// The set of timers is closed (see TimerName). Each name has at most one
// pending timer: scheduling a name again stops and replaces the previous
// timer. When a timer fires it first removes itself, then publishes its event
// on the bus. A generation counter guards against a stopped timer whose
// callback was already running.
//
// # Failure model
//
// The scheduler does no retries and no error handling beyond bookkeeping;
// what listeners do with a fired event is their concern.
package scheduler
