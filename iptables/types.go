// Package iptables models tables, chains, and rules, and parses the two
// textual formats the remote tooling emits: the numbered human-readable
// listing (`iptables -L -n -v --line-numbers`) and the machine dump
// produced by `iptables-save`.
//
// The parsers never fail.  Malformed, truncated, or unexpected input
// yields a best-effort partial structure plus a Stats count of what was
// dropped, so callers can surface degraded views instead of errors.
package iptables

// DefaultTable is the table assumed when a caller names none.
const DefaultTable = "filter"

// Tables is the fixed set of tables, in the order aggregate operations
// walk them.
var Tables = []string{"filter", "nat", "raw", "mangle"}

// ValidTable reports whether name is one of the four known tables.
func ValidTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

// ── Listing format ───────────────────────────────────────────────────

// Rule is one numbered rule from the listing format.  Num is 1-based
// and unique within its chain; it is the index `-D <chain> <num>`
// deletes by, so order is never rearranged here.
type Rule struct {
	Num         int
	Target      string
	Protocol    string
	Opt         string
	Source      string
	Destination string

	// Extra is the free-form tail of the listing line, rejoined with
	// single spaces.  The fields below are derived from it.
	Extra string
	ExtraFields
}

// ExtraFields holds the port and NAT sub-fields scraped out of a
// listing rule's extra column.  Absent patterns leave fields empty.
type ExtraFields struct {
	SourcePort string // spt:N
	DestPort   string // dpt:N, or dpts:N:M kept in range form
	NATIP      string // to:a.b.c.d
	NATPort    string // to:a.b.c.d:N
	NATDest    string // "ip" or "ip:port", combined
}

// Chain is a named, ordered rule sequence from the listing format.
// Chains appear in the order the listing printed them.
type Chain struct {
	Name  string
	Rules []Rule
}

// ── Dump (iptables-save) format ──────────────────────────────────────

// DumpRule is one `-A` line from the dump format.
type DumpRule struct {
	// Raw is the unmodified source line.
	Raw string
	// Content is everything after "-A <chain> ", restorable verbatim.
	Content string
	// Options is the tokenized breakdown of Content.
	Options RuleOptions
}

// RuleOptions is the parsed option string of one dump rule.  Flags the
// tokenizer does not recognize land in Other in source order.
type RuleOptions struct {
	Protocol    string // -p
	Source      string // -s
	Destination string // -d
	SourcePort  string // --sport
	DestPort    string // --dport
	Target      string // -j
	NATDest     string // --to-destination
	Other       []Option
}

// Option is an unrecognized flag, greedily paired with the token that
// followed it unless that token looked like another flag.
type Option struct {
	Flag  string
	Value string
}

// DumpChain is a chain as declared by a `:name policy [counters]` line.
// Policy is empty for chains the dump marks with "-".
type DumpChain struct {
	Name   string
	Policy string
	Rules  []DumpRule
}

// ── Parser bookkeeping ───────────────────────────────────────────────

// Stats counts input lines a parse pass discarded.  The parsers degrade
// instead of erroring; Stats makes the degradation observable.
type Stats struct {
	// DroppedRules counts rule lines discarded: listing lines with
	// fewer than 8 columns, rule lines outside any chain, and dump
	// `-A` lines naming a chain the table never declared.
	DroppedRules int
	// SkippedHeaders counts chain headers whose name could not be
	// extracted.  Rules under such a header are dropped and counted
	// in DroppedRules.
	SkippedHeaders int
}

func (s Stats) empty() bool { return s.DroppedRules == 0 && s.SkippedHeaders == 0 }

// Clean reports whether the pass dropped nothing.
func (s Stats) Clean() bool { return s.empty() }
