package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtbrandt/enipcore/internal/cip/protocol"
	"github.com/mtbrandt/enipcore/internal/config"
	"github.com/mtbrandt/enipcore/internal/connmgr"
	"github.com/mtbrandt/enipcore/internal/cpf"
	"github.com/mtbrandt/enipcore/internal/endpoint"
	"github.com/mtbrandt/enipcore/internal/handlers"
	"github.com/mtbrandt/enipcore/internal/logging"
	"github.com/mtbrandt/enipcore/internal/platform"
	"github.com/mtbrandt/enipcore/internal/router"
)

type serveFlags struct {
	configPath string
	listenIP   string
	tcpPort    uint16
	udpPort    uint16
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ENIP session and CPF adapter",
		Long: `serve loads the adapter configuration, brings up the TCP and UDP
listeners, and dispatches incoming ENIP traffic until interrupted.`,
		Example: `  enipd serve --config enipd.yaml
  enipd serve --listen-ip 0.0.0.0 --tcp-port 44818`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "enipd.yaml", "path to the adapter configuration file")
	cmd.Flags().StringVar(&flags.listenIP, "listen-ip", "", "override the listen IP from the config file")
	cmd.Flags().Uint16Var(&flags.tcpPort, "tcp-port", 0, "override the TCP listen port from the config file")
	cmd.Flags().Uint16Var(&flags.udpPort, "udp-port", 0, "override the UDP listen port from the config file")

	return cmd
}

func runServe(flags *serveFlags) error {
	cfg, err := config.Load(flags.configPath, true)
	if err != nil {
		return err
	}
	if flags.listenIP != "" {
		cfg.Listen.IP = flags.listenIP
	}
	if flags.tcpPort != 0 {
		cfg.Listen.TCPPort = flags.tcpPort
	}
	if flags.udpPort != 0 {
		cfg.Listen.UDPPort = flags.udpPort
	}

	logger, err := logging.NewLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.FilePath)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	registry := handlers.NewRegistry()
	registry.RegisterHandler(0x01, handlers.ServiceAny, handlers.NewIdentityHandler(handlers.IdentityConfig{
		VendorID:      cfg.Identity.VendorID,
		DeviceType:    cfg.Identity.DeviceType,
		ProductCode:   cfg.Identity.ProductCode,
		RevisionMajor: cfg.Identity.RevisionMajor,
		RevisionMinor: cfg.Identity.RevisionMinor,
		SerialNumber:  cfg.Identity.SerialNumber,
		ProductName:   cfg.Identity.ProductName,
	}))
	registry.RegisterHandler(0x06, handlers.ServiceAny, handlers.NewConnectionManagerStubs())

	conns := connmgr.NewManager()
	policy := toRouterPolicy(cfg.Policy)
	rtr := router.New(registry, conns, policy)

	listenIP := net.ParseIP(cfg.Listen.IP)
	if listenIP == nil {
		return fmt.Errorf("invalid listen.ip %q", cfg.Listen.IP)
	}

	ep := endpoint.New(endpoint.Config{
		Router:             rtr,
		ListenIP:           listenIP,
		TCPPort:            cfg.Listen.TCPPort,
		Identity:           cfg.Identity.ToIdentityInfo(),
		Support:            cfg.Support.ToDispatchConfig(),
		CPFOptions:         cpf.Options{Strict: cfg.CPF.Strict},
		SessionCapacity:    cfg.Limits.SessionCapacity,
		DelayQueueCapacity: cfg.Limits.DelayQueueCapacity,
	}, listenIP)

	platformCfg := platform.Config{
		ListenIP:           cfg.Listen.IP,
		TCPPort:            cfg.Listen.TCPPort,
		UDPPort:            cfg.Listen.UDPPort,
		TickInterval:       time.Duration(cfg.Limits.TickIntervalMS) * time.Millisecond,
		MulticastGroup:     cfg.Multicast.Group,
		MulticastInterface: cfg.Multicast.Interface,
		SessionCapacity:    cfg.Limits.SessionCapacity,
		DelayQueueCapacity: cfg.Limits.DelayQueueCapacity,
	}
	if cfg.Metrics.Enable {
		platformCfg.MetricsListenAddr = fmt.Sprintf("%s:%d", cfg.Metrics.ListenIP, cfg.Metrics.Port)
	}
	adapter := platform.New(platformCfg, ep, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := adapter.Run(ctx); err != nil {
		return fmt.Errorf("adapter stopped: %w", err)
	}
	logger.Info("enipd shut down cleanly")
	return nil
}

// toRouterPolicy renders a config.Policy as a router.Policy, translating
// each rule's raw service byte into a protocol.CIPServiceCode. A nil
// pointer field in the config rule stays nil, matching any value.
func toRouterPolicy(p config.Policy) *router.Policy {
	rules := make([]router.PolicyRule, 0, len(p.Rules))
	for _, rule := range p.Rules {
		rules = append(rules, configRuleToPolicyRule(rule))
	}
	action := router.PolicyAllow
	if p.Default == "deny" {
		action = router.PolicyDeny
	}
	return &router.Policy{Rules: rules, Default: action}
}

func configRuleToPolicyRule(rule config.PolicyRule) router.PolicyRule {
	out := router.PolicyRule{
		Class:     rule.Class,
		Instance:  rule.Instance,
		Attribute: rule.Attribute,
		Status:    rule.Status,
	}
	if rule.Service != nil {
		svc := protocol.CIPServiceCode(*rule.Service)
		out.Service = &svc
	}
	if rule.Action == "deny" {
		out.Action = router.PolicyDeny
	}
	return out
}
