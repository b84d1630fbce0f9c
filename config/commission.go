// config/commission.go
package config

import (
	"log"
	"os"

	"github.com/datamartgh/datamart_backend/utils"
)

// LoadCommissionPolicy reads the commission rounding policy from the
// environment. COMMISSION_MIN_AMOUNT is the floor for tiny non-zero
// commissions (default 0.01). COMMISSION_MAX_CAP caps every commission when
// set; deployments that want the historical 0.40 cap set it explicitly, an
// unset or zero value means uncapped.
func LoadCommissionPolicy() utils.CommissionPolicy {
	policy := utils.DefaultCommissionPolicy()

	if v := os.Getenv("COMMISSION_MIN_AMOUNT"); v != "" {
		minAmount, err := utils.ParseFloat(v)
		if err != nil || minAmount < 0 {
			log.Printf("Warning: invalid COMMISSION_MIN_AMOUNT %q, using default %.2f", v, policy.MinAmount)
		} else {
			policy.MinAmount = minAmount
		}
	}

	if v := os.Getenv("COMMISSION_MAX_CAP"); v != "" {
		maxCap, err := utils.ParseFloat(v)
		if err != nil || maxCap < 0 {
			log.Printf("Warning: invalid COMMISSION_MAX_CAP %q, commissions will be uncapped", v)
		} else {
			policy.MaxCap = maxCap
		}
	}

	if policy.MaxCap > 0 {
		log.Printf("Commission policy: floor %.2f, cap %.2f", policy.MinAmount, policy.MaxCap)
	} else {
		log.Printf("Commission policy: floor %.2f, uncapped", policy.MinAmount)
	}
	return policy
}
