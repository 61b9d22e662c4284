// Package rules orchestrates rule inspection and mutation on a remote
// host: it assembles the literal commands, runs them over a session's
// connection, and parses what comes back.
package rules

import (
	"context"
	"fmt"

	ncerr "iptadm/internal/errors"
	"iptadm/internal/metrics"
	"iptadm/iptables"
	"iptadm/util"
)

// Runner executes one command over a session's connection and returns
// its standard output.  *sshexec.Registry satisfies this.
type Runner interface {
	Run(ctx context.Context, session, command string) (string, error)
}

// TableResult is one table's outcome within an aggregate listing.
// Err distinguishes "this table is empty" from "fetching this table
// failed"; Chains is empty in both cases.
type TableResult struct {
	Chains []iptables.Chain
	Err    error
}

// Service implements the rule operations.  It holds no per-session
// state of its own; everything mutable lives in the Runner.
type Service struct {
	runner  Runner
	logger  *util.Logger
	metrics *metrics.Collector
}

// NewService returns a Service running commands through runner.
// The collector may be nil.
func NewService(runner Runner, logger *util.Logger, collector *metrics.Collector) *Service {
	return &Service{runner: runner, logger: logger, metrics: collector}
}

// ── Listing ──────────────────────────────────────────────────────────

// ListAllRules fetches and parses every table.  A failure in one table
// never aborts the others: the failed table's entry carries the error
// and an empty chain list.  Tables are fetched sequentially so the
// four commands observe one consistent ruleset generation.
func (s *Service) ListAllRules(ctx context.Context, session string) map[string]TableResult {
	out := make(map[string]TableResult, len(iptables.Tables))
	for _, table := range iptables.Tables {
		chains, err := s.listTable(ctx, session, table)
		if err != nil {
			s.logger.Error("session %s: listing table %s: %v", session, table, err)
			out[table] = TableResult{Chains: []iptables.Chain{}, Err: err}
			continue
		}
		out[table] = TableResult{Chains: chains}
	}
	return out
}

// ListRules fetches and parses one table.  Unlike ListAllRules,
// failures propagate to the caller.
func (s *Service) ListRules(ctx context.Context, session, table string) ([]iptables.Chain, error) {
	table, err := normalizeTable(table)
	if err != nil {
		return nil, err
	}
	return s.listTable(ctx, session, table)
}

func (s *Service) listTable(ctx context.Context, session, table string) ([]iptables.Chain, error) {
	out, err := s.runner.Run(ctx, session, iptables.ListCommand(table))
	if err != nil {
		return nil, err
	}

	chains, stats := iptables.ParseListing(out)
	s.recordDrops(session, table, stats)
	if chains == nil {
		chains = []iptables.Chain{}
	}
	return chains, nil
}

// ── Dump ─────────────────────────────────────────────────────────────

// Dump runs iptables-save and parses the multi-table result.
func (s *Service) Dump(ctx context.Context, session string) (map[string][]iptables.DumpChain, error) {
	out, err := s.runner.Run(ctx, session, iptables.DumpCommand())
	if err != nil {
		return nil, err
	}

	tables, stats := iptables.ParseSave(out)
	s.recordDrops(session, "dump", stats)
	return tables, nil
}

// ── Mutations ────────────────────────────────────────────────────────
//
// Each mutation is a single literal command.  A non-zero remote exit
// surfaces as *errors.ExitError with no partial effect modeled; the
// remote side may still have applied part of the operation, which is
// not observable from here.  Mutations are never retried.

// AddRule passes ruleText to the remote binary verbatim.
func (s *Service) AddRule(ctx context.Context, session, ruleText, table string) error {
	table, err := normalizeTable(table)
	if err != nil {
		return err
	}
	_, err = s.runner.Run(ctx, session, iptables.AddCommand(table, ruleText))
	return err
}

// DeleteRule removes rule ruleNum (1-based) from chain.
func (s *Service) DeleteRule(ctx context.Context, session, chain string, ruleNum int, table string) error {
	table, err := normalizeTable(table)
	if err != nil {
		return err
	}
	if ruleNum < 1 {
		return &ncerr.ConfigError{
			Field:   "rule-number",
			Value:   ruleNum,
			Message: "rule numbers are 1-based",
		}
	}
	_, err = s.runner.Run(ctx, session, iptables.DeleteCommand(table, chain, ruleNum))
	return err
}

// SaveConfig persists the running ruleset on the remote host.
func (s *Service) SaveConfig(ctx context.Context, session string) error {
	_, err := s.runner.Run(ctx, session, iptables.SaveCommand())
	return err
}

// RestoreConfig reloads the last saved ruleset on the remote host.
func (s *Service) RestoreConfig(ctx context.Context, session string) error {
	_, err := s.runner.Run(ctx, session, iptables.RestoreCommand())
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

func normalizeTable(table string) (string, error) {
	if table == "" {
		return iptables.DefaultTable, nil
	}
	if !iptables.ValidTable(table) {
		return "", fmt.Errorf("%w: %q", ncerr.ErrUnknownTable, table)
	}
	return table, nil
}

func (s *Service) recordDrops(session, source string, stats iptables.Stats) {
	if stats.Clean() {
		return
	}
	dropped := stats.DroppedRules + stats.SkippedHeaders
	s.metrics.ParserDropped(dropped)
	s.logger.Warn("session %s: %s output had %d unparseable line(s)", session, source, dropped)
}
