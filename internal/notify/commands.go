package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/greentrades/arbot/internal/domain"
)

// Controller is the bot control surface the command listener drives. Every
// mutation goes through here after the chat-ID authorization check.
type Controller interface {
	Status() domain.BotStatus
	Stats() domain.TradeStats
	BalanceSummary() domain.BalanceSummary
	Pause()
	Resume()
	Stop()
	TriggerRebalance(ctx context.Context) (domain.RebalanceResult, error)
}

// pollTimeout is the Telegram long-poll timeout in seconds.
const pollTimeout = 25

// CommandListener long-polls the Telegram getUpdates API and translates
// operator commands into Controller calls. Only messages from the configured
// chat ID are honored.
type CommandListener struct {
	token  string
	chatID string
	ctrl   Controller
	reply  func(ctx context.Context, title, message string) error
	client *http.Client
	logger *slog.Logger

	offset int64
}

// NewCommandListener creates a listener bound to one authorized chat.
func NewCommandListener(token, chatID string, ctrl Controller, logger *slog.Logger) *CommandListener {
	sender := NewTelegramSender(token, chatID)
	return &CommandListener{
		token:  token,
		chatID: chatID,
		ctrl:   ctrl,
		reply:  sender.Send,
		client: &http.Client{Timeout: (pollTimeout + 10) * time.Second},
		logger: logger.With(slog.String("component", "commands")),
	}
}

type tgUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type tgUpdatesResponse struct {
	OK     bool       `json:"ok"`
	Result []tgUpdate `json:"result"`
}

// Run polls for commands until the context is cancelled. Poll failures are
// logged and retried after a short pause.
func (l *CommandListener) Run(ctx context.Context) error {
	l.logger.Info("command listener started")
	defer l.logger.Info("command listener stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		updates, err := l.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("poll failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= l.offset {
				l.offset = u.UpdateID + 1
			}
			l.handle(ctx, u)
		}
	}
}

func (l *CommandListener) poll(ctx context.Context) ([]tgUpdate, error) {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(pollTimeout))
	if l.offset > 0 {
		q.Set("offset", strconv.FormatInt(l.offset, 10))
	}
	endpoint := telegramAPIBase + l.token + "/getUpdates?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("commands: create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("commands: poll: %w", err)
	}
	defer resp.Body.Close()

	var parsed tgUpdatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("commands: decode updates: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("commands: telegram returned ok=false")
	}
	return parsed.Result, nil
}

func (l *CommandListener) handle(ctx context.Context, u tgUpdate) {
	if u.Message == nil {
		return
	}
	if strconv.FormatInt(u.Message.Chat.ID, 10) != l.chatID {
		l.logger.Warn("command from unauthorized chat",
			slog.Int64("chat_id", u.Message.Chat.ID),
		)
		return
	}
	cmd := strings.ToLower(strings.TrimSpace(u.Message.Text))
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	var reply string
	switch cmd {
	case "/status":
		reply = formatStatus(l.ctrl.Status())
	case "/balance":
		reply = formatBalances(l.ctrl.BalanceSummary())
	case "/stats":
		reply = formatStats(l.ctrl.Stats())
	case "/pause":
		l.ctrl.Pause()
		reply = "Paused. Scanning continues, trading is suspended."
	case "/resume":
		l.ctrl.Resume()
		reply = "Resumed."
	case "/stop":
		l.ctrl.Stop()
		reply = "Stopping after the current cycle."
	case "/rebalance":
		res, err := l.ctrl.TriggerRebalance(ctx)
		switch {
		case err != nil:
			reply = "Rebalance failed: " + err.Error()
		case res.Moved:
			reply = fmt.Sprintf("Moved %.2f from %s to %s.", res.Amount, res.FromVenue, res.ToVenue)
		default:
			reply = "Balances already even, nothing moved."
		}
	case "/help", "/start":
		reply = "Commands: /status /balance /stats /pause /resume /rebalance /stop"
	default:
		return
	}

	if err := l.reply(ctx, "arbot", reply); err != nil {
		l.logger.Warn("command reply failed", slog.String("error", err.Error()))
	}
}
