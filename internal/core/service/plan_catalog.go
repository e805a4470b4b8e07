package service

import "github.com/taskflow/taskflow-api/internal/core/domain"

// PlanCatalog is the set of purchasable plans, built from configuration at
// startup and injected into the billing service.
type PlanCatalog struct {
	plans []domain.PlanInfo
	index map[domain.Plan]int
}

func NewPlanCatalog(plans []domain.PlanInfo) *PlanCatalog {
	c := &PlanCatalog{
		plans: make([]domain.PlanInfo, 0, len(plans)),
		index: make(map[domain.Plan]int, len(plans)),
	}
	for _, p := range plans {
		if _, dup := c.index[p.ID]; dup {
			continue
		}
		c.index[p.ID] = len(c.plans)
		c.plans = append(c.plans, p)
	}
	return c
}

// All returns the plans in configuration order.
func (c *PlanCatalog) All() []domain.PlanInfo {
	out := make([]domain.PlanInfo, len(c.plans))
	copy(out, c.plans)
	return out
}

// Lookup returns the plan with the given id.
func (c *PlanCatalog) Lookup(id domain.Plan) (domain.PlanInfo, bool) {
	i, ok := c.index[id]
	if !ok {
		return domain.PlanInfo{}, false
	}
	return c.plans[i], true
}
