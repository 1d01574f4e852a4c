package audit

import (
	"regexp"
)

type Verdict string

const (
	VerdictPass    Verdict = "PASS"
	VerdictFail    Verdict = "FAIL"
	VerdictUnknown Verdict = "UNKNOWN"
)

var verdictWord = regexp.MustCompile(`\b(PASS|FAIL)(?:ED|ES|ING)?\b`)

// ParseVerdict picks the grade out of a model reply. The first PASS or FAIL
// word wins; replies with neither are UNKNOWN.
func ParseVerdict(text string) Verdict {
	m := verdictWord.FindStringSubmatch(text)
	if m == nil {
		return VerdictUnknown
	}
	return Verdict(m[1])
}
