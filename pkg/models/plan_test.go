package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePlan(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
		ok   bool
	}{
		{"PAYD", PlanPAYD, true},
		{"phyd", PlanPHYD, true},
		{"Manage-How-You-Drive", PlanMHYD, true},
		{" pay-as-you-drive ", PlanPAYD, true},
		{"Premium", "", false},
	}
	for _, tt := range tests {
		got, err := ParsePlan(tt.in)
		if !tt.ok {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestDriverPlanLocked(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &Driver{}
	require.False(t, d.PlanLocked(now))

	until := now.Add(time.Hour)
	d.PlanLockedUntil = &until
	require.True(t, d.PlanLocked(now))
	require.False(t, d.PlanLocked(until))
}
