package services

// AsyncRunner schedules work that must not hold up the request, such as
// emails and events sent after a commit.
type AsyncRunner func(func())

// GoRunner runs f on a new goroutine.
func GoRunner(f func()) { go f() }

// InlineRunner runs f before returning. Tests use it to observe side effects
// deterministically.
func InlineRunner(f func()) { f() }
