package entitlements

import "github.com/ManuelReschke/projecthub/app/models"

type Plan string

const (
	PlanFree         Plan = "free"
	PlanStandard     Plan = "standard"
	PlanProfessional Plan = "professional"
)

// Unlimited marks a limit that is not enforced.
const Unlimited = -1

// Limits are the quantitative allowances of a plan.
type Limits struct {
	MaxPrivateProjects int
	MaxCollaborators   int
}

// PlanFor maps a stored plan id onto its tier. Unknown ids fall back to free.
func PlanFor(planID int) Plan {
	switch planID {
	case models.PlanProfessional:
		return PlanProfessional
	case models.PlanStandard:
		return PlanStandard
	default:
		return PlanFree
	}
}

// LimitsFor returns the allowances of a plan
func LimitsFor(plan Plan) Limits {
	switch plan {
	case PlanProfessional:
		return Limits{MaxPrivateProjects: Unlimited, MaxCollaborators: Unlimited}
	case PlanStandard:
		return Limits{MaxPrivateProjects: 20, MaxCollaborators: 10}
	default:
		return Limits{MaxPrivateProjects: 1, MaxCollaborators: 3}
	}
}

// Effective combines the plan with the current entitlement. A paid plan
// whose subscription is not entitled gets the free allowances.
func Effective(sub *models.Subscription, entitled bool) Limits {
	if sub == nil || !entitled {
		return LimitsFor(PlanFree)
	}
	return LimitsFor(PlanFor(sub.PlanID))
}

// Allows reports whether current usage leaves room for one more under limit.
func Allows(limit int, current int64) bool {
	return limit == Unlimited || current < int64(limit)
}
