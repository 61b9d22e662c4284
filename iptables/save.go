package iptables

// save.go - parser for the iptables-save dump format.
//
// The dump is a sequence of table sections:
//
//	*nat
//	:PREROUTING ACCEPT [144:8200]
//	-A PREROUTING -p tcp --dport 19070 -j DNAT --to-destination 192.168.127.70:9001
//	COMMIT
//
// Three line shapes matter: `*name` opens a table, `:name policy`
// declares a chain, `-A name rest` appends a rule to a declared chain.
// Comments, COMMIT, and blank lines are ignored.  A `-A` line naming a
// chain the current table never declared is dropped and counted: the
// dump is assumed complete, so an undeclared chain means truncated or
// foreign input, and inventing the chain would mask that.

import (
	"bufio"
	"strings"
)

// ParseSave scans a full iptables-save dump into a map from table name
// to its ordered chains.  Tables, chains, and rules keep source order.
// Malformed input degrades to whatever was parseable, never an error.
func ParseSave(text string) (map[string][]DumpChain, Stats) {
	out := make(map[string][]DumpChain)
	var (
		table    string
		chains   []DumpChain
		chainIdx map[string]int
		stats    Stats
	)

	flush := func() {
		if table != "" {
			out[table] = chains
		}
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		switch {
		case line == "" || strings.HasPrefix(line, "#") || line == "COMMIT":
			continue

		case strings.HasPrefix(line, "*"):
			flush()
			table = strings.TrimPrefix(line, "*")
			chains = nil
			chainIdx = make(map[string]int)

		case strings.HasPrefix(line, ":"):
			if table == "" {
				continue
			}
			fields := strings.Fields(line[1:])
			if len(fields) < 2 {
				continue
			}
			chain := DumpChain{Name: fields[0]}
			if fields[1] != "-" {
				chain.Policy = fields[1]
			}
			chainIdx[chain.Name] = len(chains)
			chains = append(chains, chain)

		case strings.HasPrefix(line, "-A "):
			if table == "" {
				continue
			}
			name, content, ok := splitAppendLine(line)
			if !ok {
				stats.DroppedRules++
				continue
			}
			idx, declared := chainIdx[name]
			if !declared {
				stats.DroppedRules++
				continue
			}
			chains[idx].Rules = append(chains[idx].Rules, DumpRule{
				Raw:     line,
				Content: content,
				Options: ParseRuleOptions(content),
			})
		}
	}
	flush()

	return out, stats
}

// splitAppendLine takes `-A <chain> <content>` apart.
func splitAppendLine(line string) (chain, content string, ok bool) {
	rest := strings.TrimPrefix(line, "-A ")
	parts := strings.SplitN(rest, " ", 2)
	if len(parts) < 2 || parts[0] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ── Option tokenizer ─────────────────────────────────────────────────

// knownFlags are the option flags the tokenizer assigns to named
// fields.  Each consumes exactly the next token as its value.
var knownFlags = map[string]bool{
	"-p": true, "-s": true, "-d": true,
	"--sport": true, "--dport": true,
	"-j": true, "--to-destination": true,
}

// ParseRuleOptions tokenizes the option string of one dump rule
// (everything after `-A <chain>`).  Recognized flags fill named fields,
// last occurrence winning.  Any other token starting with `-` lands in
// Other, greedily paired with the following token unless that token is
// itself a flag.
//
// The single-token lookahead cannot reassemble multi-argument module
// extensions: `-m multiport --dports 80,443 --syn` splits into
// separate Other entries instead of one coherent option.
func ParseRuleOptions(content string) RuleOptions {
	var opts RuleOptions
	tokens := strings.Fields(content)

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if knownFlags[tok] {
			if i+1 >= len(tokens) {
				break
			}
			i++
			value := tokens[i]
			switch tok {
			case "-p":
				opts.Protocol = value
			case "-s":
				opts.Source = value
			case "-d":
				opts.Destination = value
			case "--sport":
				opts.SourcePort = value
			case "--dport":
				opts.DestPort = value
			case "-j":
				opts.Target = value
			case "--to-destination":
				opts.NATDest = value
			}
			continue
		}

		if strings.HasPrefix(tok, "-") {
			opt := Option{Flag: tok}
			if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
				i++
				opt.Value = tokens[i]
			}
			opts.Other = append(opts.Other, opt)
		}
	}
	return opts
}
