package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	tele "gopkg.in/telebot.v3"

	"telematics/pkg/logger"
	"telematics/service"
	"telematics/storage/memory"
	"telematics/storage/storagetest"
)

var testNow = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.Record().Upsert(ctx, storagetest.Records()))
	svc := service.NewWithOptions(st, logger.Nop(), service.AccountOptions{
		LockMonths: 12,
		HashCost:   bcrypt.MinCost,
		Now:        func() time.Time { return testNow },
	})
	_, err := svc.Account().Register(ctx, "KA10M1001", "DL100001", "pw")
	require.NoError(t, err)

	b, err := NewWithSettings(tele.Settings{Offline: true}, 12, svc, logger.Nop())
	require.NoError(t, err)
	b.now = func() time.Time { return testNow }
	return b
}

func TestLoginAndSessions(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	reply, ok := b.login(ctx, 7, []string{"DL100001"})
	assert.False(t, ok)
	assert.Equal(t, msg("login_usage"), reply)

	reply, ok = b.login(ctx, 7, []string{"DL100001", "nope"})
	assert.False(t, ok)
	assert.Equal(t, msg("login_failed"), reply)

	assert.Equal(t, msg("not_logged_in"), b.profile(ctx, 7))

	reply, ok = b.login(ctx, 7, []string{"DL100001", "pw"})
	require.True(t, ok)
	assert.Contains(t, reply, "Driver ID: <b>1</b>")

	id, ok := b.session(7)
	require.True(t, ok)
	assert.Equal(t, "1", id)
	_, ok = b.session(8)
	assert.False(t, ok)

	assert.True(t, b.dropSession(7))
	assert.False(t, b.dropSession(7))
}

func TestProfileRecommendationPremium(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()
	_, ok := b.login(ctx, 7, []string{"DL100001", "pw"})
	require.True(t, ok)

	profile := b.profile(ctx, 7)
	assert.Contains(t, profile, "License Plate: KA10M1001")
	assert.Contains(t, profile, "Total Distance: 1500.50 km")
	assert.Contains(t, profile, "Speeding: N/A")
	assert.Contains(t, profile, "No UIB model selected")

	rec, selectable := b.recommendation(ctx, 7)
	assert.True(t, selectable)
	assert.Contains(t, rec, "Recommended Model:")
	assert.Contains(t, rec, "Suitability")

	premium := b.premium(ctx, 7)
	assert.Contains(t, premium, "PAYD:")
	assert.Contains(t, premium, "PHYD:")
}

func TestSelectPlan(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	assert.Equal(t, msg("not_logged_in"), b.selectPlan(ctx, 7, "PAYD"))

	_, ok := b.login(ctx, 7, []string{"DL100001", "pw"})
	require.True(t, ok)

	assert.Equal(t, msg("plan_usage"), b.selectPlan(ctx, 7, "bogus"))

	reply := b.selectPlan(ctx, 7, "payd")
	assert.Contains(t, reply, "Successfully enrolled in <b>Pay-As-You-Drive</b>")
	assert.Contains(t, reply, "Locked until 2026-01-05")

	reply = b.selectPlan(ctx, 7, "PHYD")
	assert.Contains(t, reply, "plan is locked until 2026-01-05")

	profile := b.profile(ctx, 7)
	assert.Contains(t, profile, "Current Model: Pay-As-You-Drive")
	assert.Contains(t, profile, "Monthly Distance")

	rec, selectable := b.recommendation(ctx, 7)
	assert.False(t, selectable)
	assert.Contains(t, rec, "locked into Pay-As-You-Drive until 2026-01-05")
}
