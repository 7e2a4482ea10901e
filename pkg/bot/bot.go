// Package bot is the Telegram surface of the driver portal.
package bot

import (
	"fmt"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"telematics/config"
	"telematics/pkg/logger"
	"telematics/service"
)

const planButton = "plan"

type Bot struct {
	Bot        *tele.Bot
	Log        logger.ILogger
	Svc        service.IServiceManager
	LockMonths int

	mu       sync.Mutex
	sessions map[int64]string // chat id -> driver id
	now      func() time.Time
}

func New(cfg *config.Config, svc service.IServiceManager, log logger.ILogger) (*Bot, error) {
	return NewWithSettings(tele.Settings{
		Token:  cfg.TelegramBotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}, cfg.PlanLockMonths, svc, log)
}

func NewWithSettings(pref tele.Settings, lockMonths int, svc service.IServiceManager, log logger.ILogger) (*Bot, error) {
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}
	bot := &Bot{
		Bot:        b,
		Log:        log,
		Svc:        svc,
		LockMonths: lockMonths,
		sessions:   make(map[int64]string),
		now:        time.Now,
	}
	bot.registerHandlers()
	return bot, nil
}

func (b *Bot) Start() {
	b.Log.Info("🤖 telegram bot started", logger.String("username", b.Bot.Me.Username))
	b.Bot.Start()
}

func (b *Bot) Stop() {
	b.Bot.Stop()
}

var messages = map[string]string{
	"welcome": "👋 Welcome to the Driver Portal bot!\n\n" +
		"/login &lt;license_number&gt; &lt;password&gt; - sign in\n" +
		"/profile - your driver details\n" +
		"/recommend - UIB model recommendation\n" +
		"/premium - your PAYD / PHYD premium quote\n" +
		"/plan &lt;PAYD|PHYD|MHYD&gt; - choose a UIB model\n" +
		"/logout - sign out",
	"welcome_back":  "👋 Welcome back, driver <b>%s</b>!",
	"login_usage":   "Usage: /login &lt;license_number&gt; &lt;password&gt;",
	"login_ok":      "✅ Login successful! Driver ID: <b>%s</b>",
	"login_failed":  "❌ Invalid credentials. Please try again.",
	"not_logged_in": "🔒 Please /login first.",
	"logged_out":    "👋 You have been logged out.",
	"plan_usage":    "Usage: /plan &lt;PAYD|PHYD|MHYD&gt;",
	"plan_ok":       "🎉 Successfully enrolled in <b>%s</b>!\n%s\nLocked until %s.",
	"plan_locked":   "⏳ %s",
	"no_record":     "📭 No telematics record is linked to your account yet.",
	"error":         "⚠️ Something went wrong, please try again later.",
	"menu":          "Choose an option:",
}

func (b *Bot) registerHandlers() {
	b.Bot.Handle("/start", b.handleStart)
	b.Bot.Handle("/login", b.handleLogin)
	b.Bot.Handle("/logout", b.handleLogout)
	b.Bot.Handle("/profile", b.handleProfile)
	b.Bot.Handle("/recommend", b.handleRecommend)
	b.Bot.Handle("/premium", b.handlePremium)
	b.Bot.Handle("/plan", b.handlePlan)

	b.Bot.Handle("👤 Profile", b.handleProfile)
	b.Bot.Handle("📊 Recommendation", b.handleRecommend)
	b.Bot.Handle("💰 Premium", b.handlePremium)
	b.Bot.Handle("🚪 Logout", b.handleLogout)

	b.Bot.Handle(&tele.Btn{Unique: planButton}, b.handlePlanCallback)
}

func (b *Bot) session(chatID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.sessions[chatID]
	return id, ok
}

func (b *Bot) setSession(chatID int64, driverID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[chatID] = driverID
}

func (b *Bot) dropSession(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[chatID]
	delete(b.sessions, chatID)
	return ok
}

func mainMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(
		menu.Row(menu.Text("👤 Profile"), menu.Text("📊 Recommendation")),
		menu.Row(menu.Text("💰 Premium"), menu.Text("🚪 Logout")),
	)
	return menu
}

func msg(key string, args ...any) string {
	if len(args) == 0 {
		return messages[key]
	}
	return fmt.Sprintf(messages[key], args...)
}
