package commands

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/core"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
)

// openPlatform loads am config, applies the --db override and opens the platform.
// The caller closes it.
func openPlatform(cmd *cobra.Command) (*core.Platform, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		override := *cfg
		override.Database.Path = dbPath
		cfg = &override
	}

	p, err := core.Open(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open platform at %s", cfg.GetDatabasePath())
	}
	return p, nil
}

// tenantFlag returns the --tenant value, which every data command requires
func tenantFlag(cmd *cobra.Command) (string, error) {
	tenant, _ := cmd.Flags().GetString("tenant")
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return "", errors.WithHint(
			errors.NewValidationError("tenant is required"),
			"pass --tenant or set STRATA_TENANT",
		)
	}
	return tenant, nil
}

// withPlatform opens the platform, resolves the tenant and runs fn
func withPlatform(cmd *cobra.Command, fn func(p *core.Platform, tenant string) error) error {
	tenant, err := tenantFlag(cmd)
	if err != nil {
		return err
	}

	p, err := openPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	return fn(p, tenant)
}

// output writes v as JSON when requested, otherwise renders the table
func output(cmd *cobra.Command, v any, table func(w io.Writer) error) error {
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), v)
	}
	return table(cmd.OutOrStdout())
}
