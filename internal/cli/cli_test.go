package cli

import (
	"strings"
	"testing"

	"github.com/caseflow-systems/leadrelay/internal/cli/config"
)

// Test command initialization and registration
func TestCommandsRegistered(t *testing.T) {
	cfg = config.Default()

	if rootCmd == nil {
		t.Fatal("rootCmd should not be nil")
	}

	commands := rootCmd.Commands()
	expectedCommands := map[string]bool{
		"send":     false,
		"seed":     false,
		"sync":     false,
		"validate": false,
		"profile":  false,
	}

	for _, cmd := range commands {
		// Extract command name (handles "sync [resource]" -> "sync")
		cmdName := cmd.Use
		for key := range expectedCommands {
			if len(cmdName) >= len(key) && cmdName[:len(key)] == key {
				expectedCommands[key] = true
				break
			}
		}
	}

	for cmdName, found := range expectedCommands {
		if !found {
			t.Errorf("expected command '%s' to be registered with root command", cmdName)
		}
	}
}

func TestGlobalFlags(t *testing.T) {
	flags := []string{"profile", "relay-url", "output"}
	for _, flagName := range flags {
		flag := rootCmd.PersistentFlags().Lookup(flagName)
		if flag == nil {
			t.Errorf("expected global flag '%s' to be defined", flagName)
		}
	}
}

func TestSendCommandFlags(t *testing.T) {
	if sendCmd == nil {
		t.Fatal("sendCmd should not be nil")
	}

	flags := []string{"file", "endpoint", "first", "last", "message", "email", "phone", "url", "source"}
	for _, flagName := range flags {
		flag := sendCmd.Flags().Lookup(flagName)
		if flag == nil {
			t.Errorf("expected flag '%s' to be defined on send command", flagName)
		}
	}
}

func TestSeedCommandFlags(t *testing.T) {
	if seedCmd == nil {
		t.Fatal("seedCmd should not be nil")
	}

	flags := []string{"count", "batch-size", "shape", "gap-rate"}
	for _, flagName := range flags {
		flag := seedCmd.Flags().Lookup(flagName)
		if flag == nil {
			t.Errorf("expected flag '%s' to be defined on seed command", flagName)
		}
	}
}

func TestSyncCommandFlags(t *testing.T) {
	if syncCmd == nil {
		t.Fatal("syncCmd should not be nil")
	}

	flags := []string{"base-url", "token", "page-size", "out"}
	for _, flagName := range flags {
		flag := syncCmd.Flags().Lookup(flagName)
		if flag == nil {
			t.Errorf("expected flag '%s' to be defined on sync command", flagName)
		}
	}
}

func TestProfileCommandHasSubcommands(t *testing.T) {
	if profileCmd == nil {
		t.Fatal("profileCmd should not be nil")
	}

	subcommands := profileCmd.Commands()
	expectedCommands := map[string]bool{
		"set":    false,
		"list":   false,
		"remove": false,
	}

	for _, cmd := range subcommands {
		cmdName := cmd.Use
		for key := range expectedCommands {
			if len(cmdName) >= len(key) && cmdName[:len(key)] == key {
				expectedCommands[key] = true
			}
		}
	}

	for cmdName, found := range expectedCommands {
		if !found {
			t.Errorf("profile command should have '%s' subcommand", cmdName)
		}
	}
}

func TestSendPayload_FromFlags(t *testing.T) {
	cfg = config.Default()

	cmd := sendCmd
	if err := cmd.Flags().Set("first", "Jane"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("email", "jane@example.com"); err != nil {
		t.Fatal(err)
	}
	defer cmd.Flags().Set("first", "")
	defer cmd.Flags().Set("email", "")

	payload, err := sendPayload(cmd)
	if err != nil {
		t.Fatalf("sendPayload() error: %v", err)
	}

	want := `"first_name":"Jane"`
	if !strings.Contains(string(payload), want) {
		t.Errorf("payload = %s, want it to contain %s", payload, want)
	}
	if !strings.Contains(string(payload), `"email":"jane@example.com"`) {
		t.Errorf("payload = %s, missing email", payload)
	}
}
