package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Ops — явные переходы машины квалификации, доступные оператору.
type Ops interface {
	Promote(ctx context.Context, id string) error
	Demote(ctx context.Context, id string) error
	SetProtected(ctx context.Context, id string, protected bool) error
	StatusSummary(ctx context.Context) (string, error)
	LineageSummary(ctx context.Context, id string) (string, error)
	RecentLog(ctx context.Context, limit int) (string, error)
}

// Telegram — нотифайер + операторские команды /status /lineage /log
// /promote /demote /protect /unprotect.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64

	mu  sync.Mutex
	ops Ops
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:    b,
		chatID: chatID,
	}, nil
}

// SetOps подключает машину квалификации после сборки графа зависимостей.
func (t *Telegram) SetOps(ops Ops) {
	t.mu.Lock()
	t.ops = ops
	t.mu.Unlock()
}

func (t *Telegram) getOps() Ops {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ops
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Start: long-polling для операторских команд.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				go t.handleCommand(ctx, upd.Message.Command(), strings.TrimSpace(upd.Message.CommandArguments()))
			}
		}
	}()
	return nil
}

func (t *Telegram) handleCommand(ctx context.Context, cmd, args string) {
	ops := t.getOps()
	if ops == nil {
		t.Send("❗️ сервис ещё не готов")
		return
	}

	switch cmd {
	case "status":
		summary, err := ops.StatusSummary(ctx)
		if err != nil {
			t.Sendf("❗️ status: %v", err)
			return
		}
		t.Send(summary)
	case "lineage":
		if args == "" {
			t.Send("❗️ usage: /lineage <strategy_id>")
			return
		}
		summary, err := ops.LineageSummary(ctx, args)
		if err != nil {
			t.Sendf("❗️ lineage %s: %v", args, err)
			return
		}
		t.Send(summary)
	case "log":
		tail, err := ops.RecentLog(ctx, 20)
		if err != nil {
			t.Sendf("❗️ log: %v", err)
			return
		}
		t.Send(tail)
	case "promote":
		t.runIDCommand(args, "promote", func(id string) error { return ops.Promote(ctx, id) })
	case "demote":
		t.runIDCommand(args, "demote", func(id string) error { return ops.Demote(ctx, id) })
	case "protect":
		t.runIDCommand(args, "protect", func(id string) error { return ops.SetProtected(ctx, id, true) })
	case "unprotect":
		t.runIDCommand(args, "unprotect", func(id string) error { return ops.SetProtected(ctx, id, false) })
	}
}

func (t *Telegram) runIDCommand(id, name string, fn func(id string) error) {
	if id == "" {
		t.Sendf("❗️ usage: /%s <strategy_id>", name)
		return
	}
	if err := fn(id); err != nil {
		t.Sendf("❗️ %s %s: %v", name, id, err)
		return
	}
	t.Sendf("✅ %s %s", name, id)
}

func (t *Telegram) Stop() {}

// Stdout — заглушка без телеграма, всё в лог.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { log.Println(msg) }
func (s *Stdout) Sendf(format string, args ...any) { log.Printf(format, args...) }
