package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentrades/arbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSender struct {
	name     string
	err      error
	messages []string
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, title+": "+message)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func TestNotifierEventFilter(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventTradeExecuted, EventEmergency}, testLogger())
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, EventTradeExecuted, "t", "m"))
	require.NoError(t, n.Notify(ctx, EventStartup, "t", "m")) // filtered, not an error
	assert.Len(t, s.messages, 1)
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventStartup, "t", "m"))
	assert.Len(t, s.messages, 1)
}

func TestNotifierSenderFailureDoesNotBlockOthers(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	assert.Error(t, err)
	assert.Len(t, good.messages, 1)
}

type fakeController struct {
	status    domain.BotStatus
	paused    bool
	stopped   bool
	rebalance domain.RebalanceResult
}

func (f *fakeController) Status() domain.BotStatus { return f.status }
func (f *fakeController) Stats() domain.TradeStats { return domain.TradeStats{TotalTrades: 3, SuccessfulTrades: 2, FailedTrades: 1} }
func (f *fakeController) BalanceSummary() domain.BalanceSummary {
	return domain.BalanceSummary{Asset: "USDT", Total: 1000}
}
func (f *fakeController) Pause()  { f.paused = true }
func (f *fakeController) Resume() { f.paused = false }
func (f *fakeController) Stop()   { f.stopped = true }
func (f *fakeController) TriggerRebalance(context.Context) (domain.RebalanceResult, error) {
	return f.rebalance, nil
}

func commandUpdate(chatID int64, text string) tgUpdate {
	u := tgUpdate{UpdateID: 1}
	u.Message = &struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	}{Text: text}
	u.Message.Chat.ID = chatID
	return u
}

func newTestListener(ctrl Controller) (*CommandListener, *[]string) {
	l := NewCommandListener("token", "42", ctrl, testLogger())
	var replies []string
	l.reply = func(_ context.Context, _, message string) error {
		replies = append(replies, message)
		return nil
	}
	return l, &replies
}

func TestCommandUnauthorizedChatIgnored(t *testing.T) {
	ctrl := &fakeController{}
	l, replies := newTestListener(ctrl)

	l.handle(context.Background(), commandUpdate(99, "/pause"))
	assert.False(t, ctrl.paused)
	assert.Empty(t, *replies)
}

func TestCommandPauseResumeStop(t *testing.T) {
	ctrl := &fakeController{}
	l, replies := newTestListener(ctrl)
	ctx := context.Background()

	l.handle(ctx, commandUpdate(42, "/pause"))
	assert.True(t, ctrl.paused)

	l.handle(ctx, commandUpdate(42, "/resume"))
	assert.False(t, ctrl.paused)

	l.handle(ctx, commandUpdate(42, "/stop"))
	assert.True(t, ctrl.stopped)
	assert.Len(t, *replies, 3)
}

func TestCommandStatusReply(t *testing.T) {
	ctrl := &fakeController{status: domain.BotStatus{Mode: domain.ModePaper, Running: true, Venues: 2}}
	l, replies := newTestListener(ctrl)

	l.handle(context.Background(), commandUpdate(42, "/status"))
	require.Len(t, *replies, 1)
	assert.Contains(t, (*replies)[0], "paper")
	assert.Contains(t, (*replies)[0], "Venues: 2")
}

func TestCommandRebalanceReply(t *testing.T) {
	ctrl := &fakeController{rebalance: domain.RebalanceResult{Moved: true, FromVenue: "a", ToVenue: "b", Amount: 150}}
	l, replies := newTestListener(ctrl)

	l.handle(context.Background(), commandUpdate(42, "/rebalance"))
	require.Len(t, *replies, 1)
	assert.Contains(t, (*replies)[0], "150.00")
}

func TestCommandWithBotSuffix(t *testing.T) {
	ctrl := &fakeController{}
	l, _ := newTestListener(ctrl)

	l.handle(context.Background(), commandUpdate(42, "/pause@arbot_bot"))
	assert.True(t, ctrl.paused)
}

func TestUnknownCommandIgnored(t *testing.T) {
	ctrl := &fakeController{}
	l, replies := newTestListener(ctrl)

	l.handle(context.Background(), commandUpdate(42, "hello there"))
	assert.Empty(t, *replies)
}
