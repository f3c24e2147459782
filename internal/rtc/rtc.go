// Package rtc reads time from the hardware RTC and drives its wake alarm and
// the system watchdog. The RTC, not the Go runtime clock, is the time source
// of record because it keeps counting while the board is suspended.
package rtc

import "time"

// MinValidTime is the earliest RTC time accepted as set. Anything before it
// means the RTC lost power and reset.
var MinValidTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
