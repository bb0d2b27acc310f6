package steps

import (
	"context"
	"fmt"

	"github.com/nodeprep/nodeprep/pkg/config"
	"github.com/nodeprep/nodeprep/pkg/engine"
	"github.com/nodeprep/nodeprep/pkg/telemetry"
)

// NewFirewallStep ensures the allow rules a Kubernetes node needs.
// Inserting a rule is fatal on failure; enabling the firewall itself is
// soft, since some environments manage activation elsewhere.
func NewFirewallStep(cfg *config.Config, d Deps) engine.Step {
	return engine.Step{
		Name:        NameFirewall,
		Description: "open Kubernetes node ports",
		Action: func(ctx context.Context) error {
			logger := telemetry.FromContext(ctx)

			for _, rule := range cfg.FirewallPorts {
				if d.Probes.FirewallRulePresent(ctx, rule) {
					logger.Debugf("firewall rule %s already present", rule)
					continue
				}
				if err := d.Firewall.Allow(ctx, rule); err != nil {
					return engine.Fatal(fmt.Sprintf("failed to allow %s", rule), err)
				}
			}

			if err := d.Firewall.Enable(ctx); err != nil {
				return engine.Soft("failed to enable firewall", err)
			}
			return nil
		},
	}
}
