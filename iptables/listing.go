package iptables

// listing.go - parser for `iptables -t <table> -L -n -v --line-numbers`.
//
// The listing is a sequence of chain sections:
//
//	Chain INPUT (policy ACCEPT 312 packets, 28789 bytes)
//	num   pkts bytes target  prot opt in  source       destination
//	1       12   720 ACCEPT  tcp  --  *   0.0.0.0/0    0.0.0.0/0    tcp dpt:22
//
// A single left-to-right scan runs a three-state machine: seeking (no
// chain open yet), inChain (collecting rules), and skipping (a header
// whose name could not be extracted; rule lines are dropped until the
// next header).  Making the skip an explicit state keeps the unmatched
// header case a testable transition rather than accidental fallthrough.

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

type listingState int

const (
	stateSeeking listingState = iota
	stateInChain
	stateSkipping
)

// minRuleColumns is the column count a listing rule line must have:
// num, pkts, bytes, target, prot, opt, source, destination.
const minRuleColumns = 8

var chainHeaderRe = regexp.MustCompile(`^Chain (\S+)`)

// ParseListing scans one table's listing output into ordered chains.
// Chains and rules keep source order.  Malformed or empty input yields
// an empty slice, never an error.
func ParseListing(text string) ([]Chain, Stats) {
	var (
		chains  []Chain
		current Chain
		state   = stateSeeking
		stats   Stats
	)

	flush := func() {
		if state == stateInChain {
			chains = append(chains, current)
		}
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "Chain") {
			flush()
			m := chainHeaderRe.FindStringSubmatch(line)
			if m == nil {
				state = stateSkipping
				stats.SkippedHeaders++
				continue
			}
			current = Chain{Name: m[1]}
			state = stateInChain
			continue
		}

		if !startsWithDigit(line) {
			// Column header row or other noise.
			continue
		}

		if state != stateInChain {
			stats.DroppedRules++
			continue
		}

		rule, ok := parseListingRule(line)
		if !ok {
			stats.DroppedRules++
			continue
		}
		current.Rules = append(current.Rules, rule)
	}
	flush()

	return chains, stats
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// parseListingRule splits one numbered rule line.  Columns:
//
//	0=num 1=pkts 2=bytes 3=target 4=prot 5=opt 6=source 7=destination
//
// Everything from column 8 on is the free-form extra text.
func parseListingRule(line string) (Rule, bool) {
	fields := strings.Fields(line)
	if len(fields) < minRuleColumns {
		return Rule{}, false
	}

	num, err := strconv.Atoi(fields[0])
	if err != nil {
		return Rule{}, false
	}

	rule := Rule{
		Num:         num,
		Target:      fields[3],
		Protocol:    fields[4],
		Opt:         fields[5],
		Source:      fields[6],
		Destination: fields[7],
	}
	if len(fields) > minRuleColumns {
		rule.Extra = strings.Join(fields[minRuleColumns:], " ")
		rule.ExtraFields = ExtractExtraFields(rule.Extra)
	}
	return rule, true
}

// ── Extra-column field extraction ────────────────────────────────────

var (
	sptRe     = regexp.MustCompile(`\bspt:(\d+)`)
	dptRe     = regexp.MustCompile(`\bdpt:(\d+)`)
	dptsRe    = regexp.MustCompile(`\bdpts:(\d+:\d+)`)
	natDestRe = regexp.MustCompile(`\bto:(\d+\.\d+\.\d+\.\d+)(?::(\d+))?`)
)

// ExtractExtraFields scrapes the port and NAT sub-fields out of a
// listing rule's extra column.  Each pattern is optional and
// independent; whatever is absent stays empty.
func ExtractExtraFields(extra string) ExtraFields {
	var f ExtraFields
	if extra == "" {
		return f
	}

	if m := sptRe.FindStringSubmatch(extra); m != nil {
		f.SourcePort = m[1]
	}

	// The range form dpts:N:M wins over the single-port form and is
	// kept verbatim so callers can render it unchanged.
	if m := dptsRe.FindStringSubmatch(extra); m != nil {
		f.DestPort = m[1]
	} else if m := dptRe.FindStringSubmatch(extra); m != nil {
		f.DestPort = m[1]
	}

	if m := natDestRe.FindStringSubmatch(extra); m != nil {
		f.NATIP = m[1]
		f.NATDest = m[1]
		if m[2] != "" {
			f.NATPort = m[2]
			f.NATDest = m[1] + ":" + m[2]
		}
	}
	return f
}
