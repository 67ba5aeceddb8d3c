package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/colonyops/devtodo/internal/core/config"
)

// AccountsCheck verifies that every configured account has a usable
// token source. It never prints token values.
type AccountsCheck struct {
	Config *config.Config
}

func (c *AccountsCheck) Name() string { return "Accounts" }

func (c *AccountsCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if len(c.Config.Accounts) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "accounts configured",
			Status: StatusWarn,
			Detail: "no accounts in config, nothing to sync",
		})
		return result
	}

	for _, name := range sortedKeys(c.Config.Accounts) {
		acct := c.Config.Accounts[name]

		item := CheckItem{Label: name, Status: StatusPass}
		switch {
		case acct.Token != "":
			item.Detail = "token set in config"
		case acct.TokenEnv != "":
			if os.Getenv(acct.TokenEnv) == "" {
				item.Status = StatusFail
				item.Detail = fmt.Sprintf("environment variable %s is empty", acct.TokenEnv)
			} else {
				item.Detail = fmt.Sprintf("token from %s", acct.TokenEnv)
			}
		default:
			item.Status = StatusFail
			item.Detail = "no token or token_env configured"
		}

		result.Items = append(result.Items, item)
	}

	return result
}
