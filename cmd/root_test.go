package cmd

import "testing"

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if GetVersion() != testVersion {
		t.Errorf("expected version %s, got %s", testVersion, GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "podhost-agent" {
		t.Errorf("expected Use to be 'podhost-agent', got %s", rootCmd.Use)
	}
	if rootCmd.Short == "" {
		t.Error("expected Short description to be set")
	}
	if !rootCmd.SilenceUsage {
		t.Error("expected SilenceUsage to be true")
	}
}

func TestAgentCommandRegistered(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c.Use == "agent" {
			return
		}
	}
	t.Error("expected agent subcommand to be registered on rootCmd")
}
