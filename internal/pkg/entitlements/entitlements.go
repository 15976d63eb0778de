package entitlements

import (
	"strings"

	"github.com/quillsign/quillsign/app/models"
)

type Tier string

const (
	TierFree         Tier = "free"
	TierProfessional Tier = "professional"
	TierStudio       Tier = "studio"
)

// Unlimited marks a tier without a monthly contract cap.
const Unlimited int64 = -1

// MonthlyContractAllowance returns how many contracts a tier may create
// per calendar month.
func MonthlyContractAllowance(tier Tier) int64 {
	switch tier {
	case TierStudio:
		return Unlimited
	case TierProfessional:
		return 50
	default:
		return 3
	}
}

// CanCreateContract combines the tier allowance with the usage counter.
func CanCreateContract(tier Tier, contractsUsed int64) bool {
	allowance := MonthlyContractAllowance(tier)
	if allowance == Unlimited {
		return true
	}
	return contractsUsed < allowance
}

// NormalizeTier maps arbitrary stored tier strings onto a known tier,
// defaulting to free.
func NormalizeTier(raw string) Tier {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(TierProfessional):
		return TierProfessional
	case string(TierStudio):
		return TierStudio
	default:
		return TierFree
	}
}

// TierRank orders tiers for comparisons; higher wins.
func TierRank(tier Tier) int {
	switch tier {
	case TierStudio:
		return 2
	case TierProfessional:
		return 1
	default:
		return 0
	}
}

// CompanyTier resolves the effective tier of a company record.
func CompanyTier(company *models.Company) Tier {
	if company == nil {
		return TierFree
	}
	return NormalizeTier(company.SubscriptionTier)
}
