package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks structural validity of the document. An active
// document must reference an existing account; an inactive (fresh)
// document is always valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Accounts))
	for _, acct := range c.Accounts {
		if seen[acct.ID] {
			return fmt.Errorf("duplicate account id: %s", acct.ID)
		}
		seen[acct.ID] = true
	}

	if !c.IsActive {
		return nil
	}
	if !seen[c.ActiveAccountID] {
		return fmt.Errorf("active account id %q does not reference a known account", c.ActiveAccountID)
	}
	return nil
}
