// Package cmd wires up the CLI flags and dispatches to the rule service.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"iptadm/config"
	"iptadm/internal/metrics"
	"iptadm/iptables"
	"iptadm/rules"
	"iptadm/sshexec"
	"iptadm/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X iptadm/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs one verb against the target host.
func Execute(ctx context.Context, args []string) error {
	cfg := &config.Config{}

	// Env first so flags registered below take precedence.
	if err := config.LoadFromEnv(cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	fs := flag.NewFlagSet("iptadm", flag.ContinueOnError)

	// ── target ───────────────────────────────────────────────────
	fs.StringVarP(&cfg.TargetSpec, "target", "T", cfg.TargetSpec, "Target host as [user@]host[:port]")
	fs.StringVar(&cfg.Profile, "profile", cfg.Profile, "Named host profile")
	fs.StringVar(&cfg.ProfilesPath, "profiles-file", cfg.ProfilesPath, "Profiles file path")
	fs.StringVar(&cfg.Session, "session", cfg.Session, "Session key (generated if empty)")

	// ── authentication ───────────────────────────────────────────
	fs.StringVar(&cfg.KeyPath, "key", cfg.KeyPath, "SSH private key file")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── operation ────────────────────────────────────────────────
	fs.StringVarP(&cfg.Table, "table", "t", cfg.Table, "Table for list/add/delete (default filter)")

	var timeoutSec int
	fs.IntVarP(&timeoutSec, "timeout", "w", 0, "Connect timeout in seconds")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.ShowStats, "stats", cfg.ShowStats, "Print run statistics to stderr on exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("iptadm %s\n", version)
		return nil
	}

	if timeoutSec > 0 {
		cfg.Timeout = time.Duration(timeoutSec) * time.Second
	}

	// ── target spec ──────────────────────────────────────────────
	if cfg.TargetSpec != "" {
		user, host, port, err := config.ParseTargetSpec(cfg.TargetSpec)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.User = user
		cfg.Host = host
		cfg.Port = port
	}

	// ── profile ──────────────────────────────────────────────────
	if cfg.Profile != "" {
		path := cfg.ProfilesPath
		if path == "" {
			var err error
			if path, err = config.DefaultProfilesPath(); err != nil {
				return err
			}
		}
		p, err := config.LoadProfile(path, cfg.Profile)
		if err != nil {
			return err
		}
		config.ApplyProfile(cfg, p)
	}

	if cfg.Port == 0 {
		cfg.Port = config.DefaultSSHPort
	}

	// ── verb ─────────────────────────────────────────────────────
	remaining := fs.Args()
	if len(remaining) < 1 {
		return fmt.Errorf("verb required: list, dump, add, delete, save, restore (use --help)")
	}
	verb, verbArgs := remaining[0], remaining[1:]

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Session == "" {
		cfg.Session = uuid.NewString()
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	collector := metrics.New()

	reg := sshexec.NewRegistry(logger, collector)
	defer reg.CloseAll()

	if err := reg.Open(ctx, cfg.Session, sshexec.Credentials{
		Host:          cfg.Host,
		Port:          cfg.Port,
		User:          cfg.User,
		KeyPath:       cfg.KeyPath,
		KeyPassphrase: cfg.KeyPassphrase,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		Timeout:       cfg.Timeout,
	}); err != nil {
		return err
	}

	svc := rules.NewService(reg, logger, collector)

	err := dispatch(ctx, svc, cfg, verb, verbArgs)

	if cfg.ShowStats {
		fmt.Fprintln(os.Stderr, collector.JSON())
	}
	return err
}

// ── dispatch ─────────────────────────────────────────────────────────

func dispatch(ctx context.Context, svc *rules.Service, cfg *config.Config, verb string, args []string) error {
	switch verb {
	case "list":
		return runList(ctx, svc, cfg, args)
	case "dump":
		return runDump(ctx, svc, cfg)
	case "add":
		if len(args) < 1 {
			return fmt.Errorf("add requires a rule, e.g. iptadm add -- -A INPUT -p tcp --dport 22 -j ACCEPT")
		}
		return svc.AddRule(ctx, cfg.Session, strings.Join(args, " "), cfg.Table)
	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("delete requires <chain> <rule-number>")
		}
		num, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("rule number %q: %w", args[1], err)
		}
		return svc.DeleteRule(ctx, cfg.Session, args[0], num, cfg.Table)
	case "save":
		return svc.SaveConfig(ctx, cfg.Session)
	case "restore":
		return svc.RestoreConfig(ctx, cfg.Session)
	default:
		return fmt.Errorf("unknown verb %q (list, dump, add, delete, save, restore)", verb)
	}
}

// runList prints one table when -t is given or a positional table is
// named, otherwise all four.
func runList(ctx context.Context, svc *rules.Service, cfg *config.Config, args []string) error {
	table := cfg.Table
	if len(args) > 0 {
		table = args[0]
	}

	if table != "" {
		chains, err := svc.ListRules(ctx, cfg.Session, table)
		if err != nil {
			return err
		}
		printTable(os.Stdout, table, chains)
		return nil
	}

	results := svc.ListAllRules(ctx, cfg.Session)
	var failed []string
	for _, t := range iptables.Tables {
		res := results[t]
		if res.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", t, res.Err))
			continue
		}
		printTable(os.Stdout, t, res.Chains)
	}
	if len(failed) > 0 {
		return fmt.Errorf("some tables could not be listed:\n  %s", strings.Join(failed, "\n  "))
	}
	return nil
}

func runDump(ctx context.Context, svc *rules.Service, cfg *config.Config) error {
	tables, err := svc.Dump(ctx, cfg.Session)
	if err != nil {
		return err
	}
	printDump(os.Stdout, tables)
	return nil
}

// ── output ───────────────────────────────────────────────────────────

func printTable(w *os.File, table string, chains []iptables.Chain) {
	fmt.Fprintf(w, "=== %s ===\n", table)
	if len(chains) == 0 {
		fmt.Fprintln(w, "(no chains)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, chain := range chains {
		fmt.Fprintf(tw, "Chain %s\n", chain.Name)
		fmt.Fprintln(tw, "num\ttarget\tprot\tsource\tdestination\textra")
		for _, r := range chain.Rules {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				r.Num, r.Target, r.Protocol, r.Source, r.Destination, r.Extra)
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}

func printDump(w *os.File, tables map[string][]iptables.DumpChain) {
	for _, t := range iptables.Tables {
		chains, ok := tables[t]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "*%s\n", t)
		for _, chain := range chains {
			fmt.Fprintf(w, ":%s %s\n", chain.Name, chain.Policy)
		}
		for _, chain := range chains {
			for _, r := range chain.Rules {
				fmt.Fprintf(w, "-A %s %s\n", chain.Name, r.Content)
			}
		}
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `iptadm – remote iptables administration v%s

Manages iptables rules on remote hosts over SSH.

Usage:
  iptadm -T user@host [options] list [table]
  iptadm -T user@host [options] dump
  iptadm -T user@host [options] add -- <rule text>
  iptadm -T user@host [options] delete <chain> <rule-number>
  iptadm -T user@host [options] save
  iptadm -T user@host [options] restore

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  iptadm -T admin@fw list                          All tables
  iptadm -T admin@fw -t nat list                   One table
  iptadm -T admin@fw add -- -A INPUT -p tcp --dport 22 -j ACCEPT
  iptadm -T admin@fw delete INPUT 3                Delete by number
  iptadm --profile edge-fw dump                    Use a host profile
`)
}
