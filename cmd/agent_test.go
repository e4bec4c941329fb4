package cmd

import "testing"

func TestLoadAgentConfig_NoConfigUsesDefaults(t *testing.T) {
	agentNoConfig = true
	agentHostname = ""
	agentDataDirectory = ""
	agentPackageDirectory = ""
	agentConfigDirectory = ""
	agentLogDirectory = ""
	agentSession = ""
	agentPodCIDR = ""
	defer func() { agentNoConfig = false }()

	cfg, err := loadAgentConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.NoConfig {
		t.Error("expected NoConfig to be true")
	}
	if cfg.PackageDirectory == "" {
		t.Error("expected a default package directory")
	}
}

func TestLoadAgentConfig_FlagsOverrideDefaults(t *testing.T) {
	agentNoConfig = true
	agentHostname = "node-a"
	agentPackageDirectory = "/custom/packages"
	agentPodCIDR = "10.1.0.0/16"
	defer func() {
		agentNoConfig = false
		agentHostname = ""
		agentPackageDirectory = ""
		agentPodCIDR = ""
	}()

	cfg, err := loadAgentConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Hostname != "node-a" {
		t.Errorf("expected hostname node-a, got %s", cfg.Hostname)
	}
	if cfg.PackageDirectory != "/custom/packages" {
		t.Errorf("expected overridden package directory, got %s", cfg.PackageDirectory)
	}
	if cfg.PodCIDR != "10.1.0.0/16" {
		t.Errorf("expected overridden pod CIDR, got %s", cfg.PodCIDR)
	}
}
