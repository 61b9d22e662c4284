package iptables

import "testing"

// The command strings are matched literally by the remote sudo policy,
// so these tests pin the exact bytes.

func TestListCommand(t *testing.T) {
	tests := []struct {
		table string
		want  string
	}{
		{"filter", "sudo iptables -t filter -L -n -v --line-numbers"},
		{"nat", "sudo iptables -t nat -L -n -v --line-numbers"},
	}
	for _, tt := range tests {
		if got := ListCommand(tt.table); got != tt.want {
			t.Errorf("ListCommand(%q) = %q, want %q", tt.table, got, tt.want)
		}
	}
}

func TestAddCommand(t *testing.T) {
	tests := []struct {
		name  string
		table string
		rule  string
		want  string
	}{
		{
			name:  "default table omits qualifier",
			table: "filter",
			rule:  "-A INPUT -p tcp --dport 22 -j ACCEPT",
			want:  "sudo iptables -A INPUT -p tcp --dport 22 -j ACCEPT",
		},
		{
			name:  "nat table qualified",
			table: "nat",
			rule:  "-A PREROUTING -p tcp --dport 80 -j DNAT --to-destination 10.0.0.5",
			want:  "sudo iptables -t nat -A PREROUTING -p tcp --dport 80 -j DNAT --to-destination 10.0.0.5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddCommand(tt.table, tt.rule); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeleteCommand(t *testing.T) {
	if got, want := DeleteCommand("filter", "INPUT", 3), "sudo iptables -D INPUT 3"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := DeleteCommand("mangle", "PREROUTING", 1), "sudo iptables -t mangle -D PREROUTING 1"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSaveRestoreCommands(t *testing.T) {
	if got, want := DumpCommand(), "sudo iptables-save"; got != want {
		t.Errorf("DumpCommand = %q, want %q", got, want)
	}
	if got, want := SaveCommand(), "sudo iptables-save > /etc/iptables/rules.v4"; got != want {
		t.Errorf("SaveCommand = %q, want %q", got, want)
	}
	if got, want := RestoreCommand(), "sudo iptables-restore < /etc/iptables/rules.v4"; got != want {
		t.Errorf("RestoreCommand = %q, want %q", got, want)
	}
}

func TestValidTable(t *testing.T) {
	for _, table := range Tables {
		if !ValidTable(table) {
			t.Errorf("ValidTable(%q) = false", table)
		}
	}
	for _, bad := range []string{"", "security", "FILTER", "filter "} {
		if ValidTable(bad) {
			t.Errorf("ValidTable(%q) = true", bad)
		}
	}
}
