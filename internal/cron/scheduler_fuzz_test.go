package cron

import "testing"

func FuzzParseSchedule(f *testing.F) {
	f.Add("*/5 * * * *")
	f.Add("0 0 * * *")
	f.Add("0 0 1 1 *")
	f.Add("* * * * *")
	f.Add("invalid")
	f.Add("")
	f.Add("60 * * * *")
	f.Add("0 25 * * *")
	f.Add("@every 1m")
	f.Add("@every -1s")

	f.Fuzz(func(t *testing.T, expr string) {
		sched, err := ParseSchedule(expr)
		if err == nil && sched == nil {
			t.Fatalf("ParseSchedule(%q) returned nil schedule without error", expr)
		}
	})
}
