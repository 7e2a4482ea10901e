package models

import (
	"fmt"
	"strings"
)

type Plan string

const (
	PlanPAYD Plan = "PAYD"
	PlanPHYD Plan = "PHYD"
	PlanMHYD Plan = "MHYD"
)

var Plans = []Plan{PlanPAYD, PlanPHYD, PlanMHYD}

func (p Plan) DisplayName() string {
	switch p {
	case PlanPAYD:
		return "Pay-As-You-Drive"
	case PlanPHYD:
		return "Pay-How-You-Drive"
	case PlanMHYD:
		return "Manage-How-You-Drive"
	}
	return string(p)
}

func (p Plan) Valid() bool {
	return p == PlanPAYD || p == PlanPHYD || p == PlanMHYD
}

// ParsePlan accepts a plan code or its display name, ignoring case.
func ParsePlan(s string) (Plan, error) {
	s = strings.TrimSpace(s)
	for _, p := range Plans {
		if strings.EqualFold(s, string(p)) || strings.EqualFold(s, p.DisplayName()) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown plan %q", s)
}
