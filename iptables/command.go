package iptables

// command.go - the literal remote command lines.
//
// These strings are the wire contract with the remote host's sudo
// policy and must not drift: a sudoers entry whitelisting the exact
// command text stops matching if so much as the flag order changes.

import "fmt"

// RulesFile is where saved configuration persists on the remote host.
const RulesFile = "/etc/iptables/rules.v4"

// ListCommand lists one table with numbered lines.  The table is always
// named explicitly here, filter included.
func ListCommand(table string) string {
	return fmt.Sprintf("sudo iptables -t %s -L -n -v --line-numbers", table)
}

// DumpCommand emits the full multi-table dump.
func DumpCommand() string {
	return "sudo iptables-save"
}

// AddCommand appends or inserts per ruleText, which is passed through
// verbatim (e.g. "-A INPUT -p tcp --dport 22 -j ACCEPT").
func AddCommand(table, ruleText string) string {
	return "sudo iptables " + tableQualifier(table) + ruleText
}

// DeleteCommand removes rule ruleNum (1-based) from chain.
func DeleteCommand(table, chain string, ruleNum int) string {
	return fmt.Sprintf("sudo iptables %s-D %s %d", tableQualifier(table), chain, ruleNum)
}

// SaveCommand persists the running configuration to RulesFile.
func SaveCommand() string {
	return "sudo iptables-save > " + RulesFile
}

// RestoreCommand reloads the configuration saved in RulesFile.
func RestoreCommand() string {
	return "sudo iptables-restore < " + RulesFile
}

// tableQualifier returns "-t <table> ", or nothing for the default
// table, which the remote binary assumes when the flag is absent.
func tableQualifier(table string) string {
	if table == "" || table == DefaultTable {
		return ""
	}
	return "-t " + table + " "
}
