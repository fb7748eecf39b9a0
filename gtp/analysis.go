package gtp

import (
	"strconv"
	"strings"
)

// recordSeparator starts every analysis record on an engine output line.
const recordSeparator = "info"

// Analysis is one candidate move evaluation reported by kata-analyze.
//
// A typical record looks like:
//
//	info move K9 visits 1 utility 0.963494 winrate 0.981747 scoreMean 1.56209
//	scoreStdev 13.7542 scoreLead 1.56209 scoreSelfplay 1.56209 prior 0.0407438
//	lcb -0.0182531 utilityLcb -2.8 order 0 pv K9 K8 pvVisits 1
//
// Numeric fields whose token does not parse are left at zero.
type Analysis struct {
	Move          string
	PV            []string
	Visits        uint64
	Order         uint64
	PVVisits      uint64
	Utility       float64
	Winrate       float64
	ScoreMean     float64
	ScoreStdev    float64
	ScoreLead     float64
	ScoreSelfplay float64
	Prior         float64
	LCB           float64
	UtilityLCB    float64
}

// Decode splits one engine output line into analysis records.
//
// Each "info" token starts a new record; tokens before the first "info"
// form a record of their own when there are any. Unknown keys are skipped
// so newer engines that emit extra fields still decode. Decode never fails:
// malformed values leave the field at zero.
func Decode(line string) []Analysis {
	var (
		records []Analysis
		run     []string
	)
	for _, tok := range strings.Fields(line) {
		if tok == recordSeparator {
			if len(run) > 0 {
				records = append(records, decodeRecord(run))
				run = run[:0]
			}
			continue
		}
		run = append(run, tok)
	}
	if len(run) > 0 {
		records = append(records, decodeRecord(run))
	}
	return records
}

func decodeRecord(toks []string) Analysis {
	var a Analysis
	for i := 0; i < len(toks); i++ {
		key := toks[i]
		switch key {
		case "pv":
			for i++; i < len(toks); i++ {
				if toks[i] == "pvVisits" {
					if i+1 < len(toks) {
						a.PVVisits = parseUint(toks[i+1])
					}
					return a
				}
				a.PV = append(a.PV, toks[i])
			}
			return a
		}

		field, ok := valueSetters[key]
		if !ok {
			continue
		}
		if i+1 >= len(toks) {
			break
		}
		i++
		field(&a, toks[i])
	}
	return a
}

// valueSetters holds every single-valued key the decoder understands.
var valueSetters = map[string]func(*Analysis, string){
	"move":          func(a *Analysis, v string) { a.Move = v },
	"visits":        func(a *Analysis, v string) { a.Visits = parseUint(v) },
	"utility":       func(a *Analysis, v string) { a.Utility = parseFloat(v) },
	"winrate":       func(a *Analysis, v string) { a.Winrate = parseFloat(v) },
	"scoreMean":     func(a *Analysis, v string) { a.ScoreMean = parseFloat(v) },
	"scoreStdev":    func(a *Analysis, v string) { a.ScoreStdev = parseFloat(v) },
	"scoreLead":     func(a *Analysis, v string) { a.ScoreLead = parseFloat(v) },
	"scoreSelfplay": func(a *Analysis, v string) { a.ScoreSelfplay = parseFloat(v) },
	"prior":         func(a *Analysis, v string) { a.Prior = parseFloat(v) },
	"lcb":           func(a *Analysis, v string) { a.LCB = parseFloat(v) },
	"utilityLcb":    func(a *Analysis, v string) { a.UtilityLCB = parseFloat(v) },
	"order":         func(a *Analysis, v string) { a.Order = parseUint(v) },
	"pvVisits":      func(a *Analysis, v string) { a.PVVisits = parseUint(v) },
}

func parseUint(s string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
