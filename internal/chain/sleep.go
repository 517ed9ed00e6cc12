package chain

import "time"

// sleep is a var so tests can stub out real waiting.
var sleep = func(nanos int64) {
	if nanos > 0 {
		time.Sleep(time.Duration(nanos))
	}
}
