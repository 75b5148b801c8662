package main

import (
	"os"
	"testing"
)

func TestStatusToExitCode(t *testing.T) {
	tests := []struct {
		status int
		want   int
	}{
		{400, 1},
		{404, 1},
		{500, 2},
		{502, 2},
		{0, 1},
	}

	for _, tt := range tests {
		if got := statusToExitCode(tt.status); got != tt.want {
			t.Errorf("statusToExitCode(%d) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestIsCLIMode(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "no args is server mode", args: []string{"glance"}, want: false},
		{name: "capture subcommand", args: []string{"glance", "capture"}, want: true},
		{name: "render subcommand", args: []string{"glance", "render"}, want: true},
		{name: "list subcommand", args: []string{"glance", "list"}, want: true},
		{name: "help flag", args: []string{"glance", "--help"}, want: true},
		{name: "version flag", args: []string{"glance", "-v"}, want: true},
		{name: "unknown arg is not CLI", args: []string{"glance", "bogus"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			if got := isCLIMode(); got != tt.want {
				t.Errorf("isCLIMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"glance"}, false},
		{[]string{"glance", "--help"}, true},
		{[]string{"glance", "help"}, true},
		{[]string{"glance", "--version"}, true},
		{[]string{"glance", "capture"}, false},
	}

	for _, tt := range tests {
		os.Args = tt.args
		if got := isHelpOrVersion(); got != tt.want {
			t.Errorf("isHelpOrVersion() with %v = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestNewCLIAppCommands(t *testing.T) {
	app := newCLIApp(nil, nil)

	want := []string{"capture", "render", "fetch", "latest", "list", "prune"}
	if len(app.Commands) != len(want) {
		t.Fatalf("commands = %d, want %d", len(app.Commands), len(want))
	}
	for i, name := range want {
		if app.Commands[i].Name != name {
			t.Errorf("command[%d] = %q, want %q", i, app.Commands[i].Name, name)
		}
	}
}
