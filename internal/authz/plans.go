package authz

// Plan is the subscription tier of an account.
type Plan string

const (
	PlanFree         Plan = "free"
	PlanBasic        Plan = "basic"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

var planRank = map[Plan]int{
	PlanFree:         0,
	PlanBasic:        1,
	PlanProfessional: 2,
	PlanEnterprise:   3,
}

func (p Plan) Valid() bool {
	_, ok := planRank[p]
	return ok
}

// AtLeast compares tiers; an unknown plan ranks as free.
func (p Plan) AtLeast(min Plan) bool {
	return planRank[p] >= planRank[min]
}

// Lead quotas per plan. Zero means unlimited.
var leadQuota = map[Plan]int{
	PlanFree:         25,
	PlanBasic:        250,
	PlanProfessional: 2500,
	PlanEnterprise:   0,
}

func LeadQuota(p Plan) int {
	if q, ok := leadQuota[p]; ok {
		return q
	}
	return leadQuota[PlanFree]
}
