package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/spf13/cobra"

	"muster/internal/client"
	"muster/internal/config"
	"muster/internal/configmaterializer"
	"muster/internal/installer"
	"muster/internal/pod"
	"muster/internal/podstate"
	"muster/internal/provider"
	"muster/internal/registry"
	"muster/internal/repository"
	"muster/internal/supervisor"
	"muster/internal/template"
	"muster/pkg/logging"
)

var (
	agentHostname         string
	agentDataDirectory    string
	agentBootstrapFile    string
	agentServerBindIP     string
	agentServerCertFile   string
	agentServerKeyFile    string
	agentServerPort       int
	agentPackageDirectory string
	agentConfigDirectory  string
	agentLogDirectory     string
	agentNoConfig         bool
	agentTags             []string
	agentSession          string
	agentPodCIDR          string
	agentConfigPath       string
	agentSlice            string
	agentDebug            bool
)

// agentCmd runs the node agent: it registers this node, reconciles any
// units the supervisor already owns against the pods currently assigned to
// it, and then drives each assigned pod's lifecycle until terminated.
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the node agent that adopts assigned pods as systemd services",
	Long: `The agent command is the main entry point of podhost-agent: it connects to
the orchestrator, registers this node, and keeps one state machine running
per pod assigned to it, taking each pod from package download through
configuration materialization, unit synthesis, and supervision.`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)

	hostname, _ := os.Hostname()

	agentCmd.Flags().StringVar(&agentHostname, "hostname", hostname, "Node name this agent registers and claims assigned pods under")
	agentCmd.Flags().StringVar(&agentDataDirectory, "data-directory", "", "Root data directory (overrides config.yaml)")
	agentCmd.Flags().StringVar(&agentBootstrapFile, "bootstrap-file", "", "Kubeconfig or bootstrap credentials file")
	agentCmd.Flags().StringVar(&agentServerBindIP, "server-bind-ip", "", "IP address this node's containers bind to")
	agentCmd.Flags().StringVar(&agentServerCertFile, "server-cert-file", "", "TLS certificate file for bootstrap")
	agentCmd.Flags().StringVar(&agentServerKeyFile, "server-key-file", "", "TLS key file for bootstrap")
	agentCmd.Flags().IntVar(&agentServerPort, "server-port", 0, "Port advertised on node registration (0 uses config default)")
	agentCmd.Flags().StringVar(&agentPackageDirectory, "package-directory", "", "Directory packages are downloaded and extracted into")
	agentCmd.Flags().StringVar(&agentConfigDirectory, "config-directory", "", "Directory per-pod materialized configuration is written into")
	agentCmd.Flags().StringVar(&agentLogDirectory, "log-directory", "", "Directory per-pod logs are written into")
	agentCmd.Flags().BoolVar(&agentNoConfig, "no-config", false, "Skip loading config.yaml, using only flags and defaults")
	agentCmd.Flags().StringArrayVar(&agentTags, "tag", nil, "Node tag in K=V form (repeatable)")
	agentCmd.Flags().StringVar(&agentSession, "session", "", "Supervisor session this agent manages units in (system or user)")
	agentCmd.Flags().StringVar(&agentPodCIDR, "pod-cidr", "", "CIDR this node's pods are assigned addresses from")
	agentCmd.Flags().StringVar(&agentConfigPath, "config-path", "", "Directory containing config.yaml (default: --data-directory)")
	agentCmd.Flags().StringVar(&agentSlice, "slice", "podhost.slice", "Supervisor slice this agent owns units in")
	agentCmd.Flags().BoolVar(&agentDebug, "debug", false, "Enable debug-level logging")
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	level := logging.LevelInfo
	if agentDebug {
		level = logging.LevelDebug
	}
	logging.Init(level, cmd.OutOrStderr())

	cfg, err := loadAgentConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	tags, err := config.ParseTags(agentTags)
	if err != nil {
		return err
	}
	cfg.Tags = tags

	restConfig, err := ctrl.GetConfig()
	if err != nil {
		return fmt.Errorf("resolving Kubernetes client config: %w", err)
	}
	orchestrator, err := client.NewKubernetesClient(restConfig)
	if err != nil {
		return fmt.Errorf("building orchestrator client: %w", err)
	}

	userMode := cfg.Session == "user"
	sup, err := supervisor.Connect(ctx, agentSlice, userMode)
	if err != nil {
		return fmt.Errorf("connecting to supervisor: %w", err)
	}
	defer sup.Close()

	templater := template.New()
	resolver := repository.New(orchestrator, http.DefaultClient)
	inst := installer.New()
	materializer := configmaterializer.New(orchestrator, templater)
	reg := registry.New()

	deps := &podstate.Dependencies{
		Orchestrator: orchestrator,
		Resolver:     resolver,
		Installer:    inst,
		Materializer: materializer,
		Templater:    templater,
		Supervisor:   sup,
		Registry:     reg,
		Dirs: pod.Dirs{
			Packages: cfg.PackageDirectory,
			Config:   cfg.ConfigDirectory,
			Logs:     cfg.LogDirectory,
		},
		UserMode: userMode,
		BoundIP:  cfg.ServerBindIP,
		Slice:    agentSlice,
	}

	prov := provider.New(provider.Config{
		NodeName: agentHostname,
		Deps:     deps,
	})

	return prov.Run(ctx)
}

// loadAgentConfig layers CLI flags over config.yaml (or defaults alone when
// --no-config is set).
func loadAgentConfig() (config.AgentConfig, error) {
	var cfg config.AgentConfig
	var err error

	if agentNoConfig {
		cfg = config.DefaultConfig()
	} else {
		configPath := agentConfigPath
		if configPath == "" {
			configPath = agentDataDirectory
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return config.AgentConfig{}, err
		}
	}

	if agentHostname != "" {
		cfg.Hostname = agentHostname
	}
	if agentDataDirectory != "" {
		cfg.DataDirectory = agentDataDirectory
	}
	if agentBootstrapFile != "" {
		cfg.BootstrapFile = agentBootstrapFile
	}
	if agentServerBindIP != "" {
		cfg.ServerBindIP = agentServerBindIP
	}
	if agentServerCertFile != "" {
		cfg.ServerCertFile = agentServerCertFile
	}
	if agentServerKeyFile != "" {
		cfg.ServerKeyFile = agentServerKeyFile
	}
	if agentServerPort != 0 {
		cfg.ServerPort = agentServerPort
	}
	if agentPackageDirectory != "" {
		cfg.PackageDirectory = agentPackageDirectory
	}
	if agentConfigDirectory != "" {
		cfg.ConfigDirectory = agentConfigDirectory
	}
	if agentLogDirectory != "" {
		cfg.LogDirectory = agentLogDirectory
	}
	if agentNoConfig {
		cfg.NoConfig = true
	}
	if agentSession != "" {
		cfg.Session = agentSession
	}
	if agentPodCIDR != "" {
		cfg.PodCIDR = agentPodCIDR
	}

	return cfg, nil
}
