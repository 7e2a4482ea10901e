package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telematics/pkg/logger"
	"telematics/pkg/models"
	"telematics/pkg/recommend"
	"telematics/service"
)

func (b *Bot) handleStart(c tele.Context) error {
	if id, ok := b.session(c.Chat().ID); ok {
		return c.Send(msg("welcome_back", html.EscapeString(id)), mainMenu(), tele.ModeHTML)
	}
	return c.Send(msg("welcome"), tele.ModeHTML)
}

func (b *Bot) handleLogin(c tele.Context) error {
	// The message carries a password.
	if err := c.Delete(); err != nil {
		b.Log.Debug("could not delete login message", logger.Error(err))
	}
	reply, ok := b.login(context.Background(), c.Chat().ID, c.Args())
	if ok {
		return c.Send(reply, mainMenu(), tele.ModeHTML)
	}
	return c.Send(reply, tele.ModeHTML)
}

func (b *Bot) handleLogout(c tele.Context) error {
	b.dropSession(c.Chat().ID)
	return c.Send(msg("logged_out"), tele.RemoveKeyboard)
}

func (b *Bot) handleProfile(c tele.Context) error {
	return c.Send(b.profile(context.Background(), c.Chat().ID), tele.ModeHTML)
}

func (b *Bot) handleRecommend(c tele.Context) error {
	reply, selectable := b.recommendation(context.Background(), c.Chat().ID)
	if !selectable {
		return c.Send(reply, tele.ModeHTML)
	}
	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, p := range models.Plans {
		rows = append(rows, menu.Row(menu.Data(p.DisplayName(), planButton, string(p))))
	}
	menu.Inline(rows...)
	return c.Send(reply, menu, tele.ModeHTML)
}

func (b *Bot) handlePremium(c tele.Context) error {
	return c.Send(b.premium(context.Background(), c.Chat().ID), tele.ModeHTML)
}

func (b *Bot) handlePlan(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Send(msg("plan_usage"), tele.ModeHTML)
	}
	return c.Send(b.selectPlan(context.Background(), c.Chat().ID, args[0]), tele.ModeHTML)
}

func (b *Bot) handlePlanCallback(c tele.Context) error {
	reply := b.selectPlan(context.Background(), c.Chat().ID, c.Callback().Data)
	if _, err := b.Bot.Edit(c.Callback().Message, reply, tele.ModeHTML); err != nil {
		b.Log.Warning("could not edit plan message", logger.Error(err))
	}
	return c.Respond()
}

func (b *Bot) login(ctx context.Context, chatID int64, args []string) (string, bool) {
	if len(args) != 2 {
		return msg("login_usage"), false
	}
	d, err := b.Svc.Account().Authenticate(ctx, args[0], args[1])
	if errors.Is(err, service.ErrInvalidCredentials) {
		return msg("login_failed"), false
	}
	if err != nil {
		b.Log.Error("bot login failed", logger.Int64("chat_id", chatID), logger.Error(err))
		return msg("error"), false
	}
	b.setSession(chatID, d.DriverID)
	return msg("login_ok", html.EscapeString(d.DriverID)), true
}

func (b *Bot) details(ctx context.Context, chatID int64) (*models.DriverDetails, string) {
	driverID, ok := b.session(chatID)
	if !ok {
		return nil, msg("not_logged_in")
	}
	details, err := b.Svc.Account().Details(ctx, driverID)
	if errors.Is(err, service.ErrDriverNotFound) {
		b.dropSession(chatID)
		return nil, msg("not_logged_in")
	}
	if err != nil {
		b.Log.Error("bot details failed", logger.String("driver_id", driverID), logger.Error(err))
		return nil, msg("error")
	}
	return details, ""
}

func optInt(v *int) string {
	if v == nil {
		return "N/A"
	}
	return strconv.Itoa(*v)
}

func (b *Bot) profile(ctx context.Context, chatID int64) string {
	details, fail := b.details(ctx, chatID)
	if details == nil {
		return fail
	}
	d := details.Driver
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>👤 Driver %s</b>\n", html.EscapeString(d.DriverID))
	fmt.Fprintf(&sb, "License Plate: %s\nLicense Number: %s\n", html.EscapeString(d.LicensePlate), html.EscapeString(d.LicenseNumber))
	if r := details.Record; r != nil {
		fmt.Fprintf(&sb, "Age: %d\nExperience: %d years\nVehicle: %s\nDriving Style: %s\n\n", r.Age, r.YearsOfExperience, r.VehicleType, r.DrivingStyle)
		fmt.Fprintf(&sb, "<b>📈 Driving Statistics</b>\nTotal Distance: %.2f km\nMonthly Average: %.2f km\n", r.TotalKm, r.MonthlyKm())
		fmt.Fprintf(&sb, "Sudden Braking: %s\nSpeeding: %s\nAccidents: %d\nFines: %d\n",
			optInt(r.SuddenBrakingEvents), optInt(r.SpeedingEvents), r.PreviousAccidents, r.TrafficFines)
	}

	status := recommend.PlanStatus(d, details.Record, b.now())
	sb.WriteString("\n<b>🛡 UIB Model</b>\n")
	if status.Plan == nil {
		sb.WriteString("No UIB model selected. Use /recommend to choose one!")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Current Model: %s\n", status.PlanName)
	if status.Locked {
		fmt.Fprintf(&sb, "Locked until: %s\n", status.LockedUntil.Format("2006-01-02"))
	}
	if m := status.Metric; m != nil {
		fmt.Fprintf(&sb, "%s: %.1f %s (%s)", m.Label, m.Value, m.Unit, m.Status)
	}
	return sb.String()
}

// recommendation also reports whether the plan buttons should be offered.
func (b *Bot) recommendation(ctx context.Context, chatID int64) (string, bool) {
	details, fail := b.details(ctx, chatID)
	if details == nil {
		return fail, false
	}
	if details.Record == nil {
		return msg("no_record"), false
	}
	v := recommend.Build(*details, b.now())
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>📊 Risk Score:</b> %.0f / 100\n", v.RiskScore*100)
	fmt.Fprintf(&sb, "<b>Recommended Model:</b> %s\n", v.Recommendation.Name)
	for _, f := range v.Recommendation.Features {
		fmt.Fprintf(&sb, "• %s\n", f)
	}
	sb.WriteString("\n<b>Suitability</b>\n")
	for _, s := range v.Suitability {
		fmt.Fprintf(&sb, "%s: %.1f%%\n", s.Name, s.Value)
	}
	sb.WriteString("\n<b>Estimated Monthly Premiums</b>\n")
	for _, l := range v.CostBenefit {
		fmt.Fprintf(&sb, "%s: %.2f (saves %.2f)\n", l.Name, l.Premium, l.Savings)
	}
	for _, hint := range []string{v.UsageHint, v.StyleHint} {
		if hint != "" {
			fmt.Fprintf(&sb, "\n💡 %s", hint)
		}
	}
	if v.Status.Locked {
		fmt.Fprintf(&sb, "\n\n⏳ You are locked into %s until %s.", v.Status.PlanName, v.Status.LockedUntil.Format("2006-01-02"))
		return sb.String(), false
	}
	return sb.String(), true
}

func (b *Bot) premium(ctx context.Context, chatID int64) string {
	driverID, ok := b.session(chatID)
	if !ok {
		return msg("not_logged_in")
	}
	id, err := strconv.ParseInt(driverID, 10, 64)
	if err != nil {
		return msg("no_record")
	}
	q, err := b.Svc.Premium().Quote(ctx, id)
	if errors.Is(err, service.ErrRecordNotFound) {
		return msg("no_record")
	}
	if err != nil {
		b.Log.Error("bot premium failed", logger.String("driver_id", driverID), logger.Error(err))
		return msg("error")
	}
	return fmt.Sprintf("<b>💰 Premium Quote</b>\nMonthly distance: %.1f km\nRisk score: %.2f\n"+
		"PAYD: %.2f\nPHYD: %.2f\nRecommended: <b>%s</b> (saves %.2f)",
		q.MonthlyKm, q.RiskScore, q.PAYDPremium, q.PHYDPremium, q.RecommendedModel.DisplayName(), q.Savings())
}

func (b *Bot) selectPlan(ctx context.Context, chatID int64, plan string) string {
	driverID, ok := b.session(chatID)
	if !ok {
		return msg("not_logged_in")
	}
	d, err := b.Svc.Account().SelectPlan(ctx, driverID, plan, b.LockMonths)
	switch {
	case errors.Is(err, service.ErrPlanLocked):
		return msg("plan_locked", html.EscapeString(err.Error()))
	case errors.Is(err, service.ErrUnknownPlan):
		return msg("plan_usage")
	case err != nil:
		b.Log.Error("bot plan selection failed", logger.String("driver_id", driverID), logger.Error(err))
		return msg("error")
	}
	p := *d.SelectedPlan
	return msg("plan_ok", p.DisplayName(), recommend.EnrollmentNote(p), d.PlanLockedUntil.Format("2006-01-02"))
}
