package config

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
)

// Validate performs structural validation of the configuration.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		c.validateAccounts(),
		c.validateTargets(),
		c.validateDefaultTargets(),
	)
}

func (c *Config) validateAccounts() error {
	var errs criterio.FieldErrorsBuilder

	for name, acct := range c.Accounts {
		field := fmt.Sprintf("accounts[%q]", name)

		if acct.Service != ServiceGitHub {
			errs = errs.Append(field+".service", fmt.Errorf("unknown service %q (supported: %s)", acct.Service, ServiceGitHub))
		}
		if acct.Token == "" && acct.TokenEnv == "" {
			errs = errs.Append(field, fmt.Errorf("one of token or token_env is required"))
		}
	}

	return errs.ToError()
}

func (c *Config) validateTargets() error {
	var errs criterio.FieldErrorsBuilder

	for name, target := range c.Targets {
		field := fmt.Sprintf("targets[%q]", name)

		if target.Directory == "" {
			errs = errs.Append(field+".directory", fmt.Errorf("directory is required"))
		}
		if len(target.Profiles) == 0 {
			errs = errs.Append(field+".profiles", fmt.Errorf("at least one profile is required"))
		}

		for pname, profile := range target.Profiles {
			pfield := fmt.Sprintf("%s.profiles[%q]", field, pname)

			if profile.Account == "" {
				errs = errs.Append(pfield+".account", fmt.Errorf("account is required"))
			} else if _, ok := c.Accounts[profile.Account]; !ok {
				errs = errs.Append(pfield+".account", fmt.Errorf("unknown account %q", profile.Account))
			}

			for i, pattern := range profile.Repos {
				if !doublestar.ValidatePattern(pattern) {
					errs = errs.Append(fmt.Sprintf("%s.repos[%d]", pfield, i), fmt.Errorf("invalid glob pattern %q", pattern))
				}
			}
		}
	}

	return errs.ToError()
}

func (c *Config) validateDefaultTargets() error {
	var errs criterio.FieldErrorsBuilder

	for i, name := range c.DefaultTargets {
		if _, ok := c.Targets[name]; !ok {
			errs = errs.Append(fmt.Sprintf("default_targets[%d]", i), fmt.Errorf("unknown target %q", name))
		}
	}

	return errs.ToError()
}
