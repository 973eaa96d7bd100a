package moderation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeChat struct {
	deleted   [][2]int64 // chatID, messageID
	banned    [][2]int64 // chatID, userID
	sent      []string
	deleteErr error
	banErr    error
	sendErr   error
	nextMsgID int
}

func (f *fakeChat) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, [2]int64{chatID, int64(messageID)})
	return nil
}

func (f *fakeChat) BanMember(_ context.Context, chatID, userID int64) error {
	if f.banErr != nil {
		return f.banErr
	}
	f.banned = append(f.banned, [2]int64{chatID, userID})
	return nil
}

func (f *fakeChat) SendMessage(_ context.Context, _ int64, text string) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.sent = append(f.sent, text)
	f.nextMsgID++
	return f.nextMsgID, nil
}

type recordedBan struct {
	chatID   int64
	userID   int64
	username string
}

type fakeRecorder struct {
	bans []recordedBan
}

func (r *fakeRecorder) RecordBan(chatID int64, _ string, userID int64, username string) {
	r.bans = append(r.bans, recordedBan{chatID, userID, username})
}

// testEnforcer captures cleanup funcs instead of arming timers.
func testEnforcer(chat *fakeChat) (*Enforcer, *[]func()) {
	e := NewEnforcer(chat, 10*time.Second)
	var cleanups []func()
	e.schedule = func(_ time.Duration, f func()) {
		cleanups = append(cleanups, f)
	}
	return e, &cleanups
}

func spamVerdict() Verdict {
	return Verdict{IsSpam: true, Confidence: 0.92, Reason: "推广链接", Category: "advertising"}
}

func TestEnforcer_DeleteBanNotify(t *testing.T) {
	chat := &fakeChat{}
	e, cleanups := testEnforcer(chat)
	rec := &fakeRecorder{}
	e.SetRecorder(rec)

	msg := userMessage(300, "spam")
	res := e.Enforce(context.Background(), msg, Decision{ShouldDelete: true, ShouldBan: true}, spamVerdict())

	if !res.Deleted || !res.Banned || !res.Notified {
		t.Fatalf("result: %+v", res)
	}
	if len(chat.deleted) != 1 || chat.deleted[0] != [2]int64{-1001, 42} {
		t.Errorf("deleted: %v", chat.deleted)
	}
	if len(chat.banned) != 1 || chat.banned[0] != [2]int64{-1001, 300} {
		t.Errorf("banned: %v", chat.banned)
	}
	if len(chat.sent) != 1 || !strings.Contains(chat.sent[0], "检测到垃圾消息") {
		t.Errorf("notice: %v", chat.sent)
	}
	if len(rec.bans) != 1 || rec.bans[0].userID != 300 {
		t.Errorf("recorded bans: %+v", rec.bans)
	}
	if len(*cleanups) != 1 {
		t.Fatalf("expected one scheduled cleanup, got %d", len(*cleanups))
	}

	// Running the deferred cleanup removes the notice message.
	(*cleanups)[0]()
	if len(chat.deleted) != 2 || chat.deleted[1] != [2]int64{-1001, 1} {
		t.Errorf("cleanup should delete the notice: %v", chat.deleted)
	}
}

func TestEnforcer_DeleteFailureStillBans(t *testing.T) {
	chat := &fakeChat{deleteErr: ErrPermissionDenied}
	e, _ := testEnforcer(chat)

	res := e.Enforce(context.Background(), userMessage(300, "spam"),
		Decision{ShouldDelete: true, ShouldBan: true}, spamVerdict())

	if res.Deleted {
		t.Error("delete should have failed")
	}
	if !errors.Is(res.DeleteErr, ErrPermissionDenied) {
		t.Errorf("DeleteErr: %v", res.DeleteErr)
	}
	if !res.Banned {
		t.Error("ban must still be attempted after delete failure")
	}
	if !res.Notified {
		t.Error("notice must still be sent after delete failure")
	}
}

func TestEnforcer_BanFailureStillDeletesAndNotifies(t *testing.T) {
	chat := &fakeChat{banErr: errors.New("user is an administrator")}
	e, _ := testEnforcer(chat)

	res := e.Enforce(context.Background(), userMessage(300, "spam"),
		Decision{ShouldDelete: true, ShouldBan: true}, spamVerdict())

	if !res.Deleted {
		t.Error("delete must succeed independently of the ban")
	}
	if res.Banned || res.BanErr == nil {
		t.Errorf("ban result: %+v", res)
	}
	if !res.Notified {
		t.Error("notice should follow a successful delete")
	}
}

func TestEnforcer_NotifyFailureDoesNotUndoActions(t *testing.T) {
	chat := &fakeChat{sendErr: errors.New("flood wait")}
	e, cleanups := testEnforcer(chat)

	res := e.Enforce(context.Background(), userMessage(300, "spam"),
		Decision{ShouldDelete: true, ShouldBan: true}, spamVerdict())

	if !res.Deleted || !res.Banned {
		t.Errorf("result: %+v", res)
	}
	if res.Notified || res.NotifyErr == nil {
		t.Errorf("notify result: %+v", res)
	}
	if len(*cleanups) != 0 {
		t.Error("no cleanup without a sent notice")
	}
}

func TestEnforcer_NoActionForEmptyDecision(t *testing.T) {
	chat := &fakeChat{}
	e, _ := testEnforcer(chat)

	res := e.Enforce(context.Background(), userMessage(300, "fine"), Decision{}, Verdict{})

	if res.Deleted || res.Banned || res.Notified {
		t.Errorf("empty decision should be a no-op: %+v", res)
	}
	if len(chat.deleted)+len(chat.banned)+len(chat.sent) != 0 {
		t.Error("no chat calls expected")
	}
}

func TestEnforcer_DeleteOnlyWhenBanDisabled(t *testing.T) {
	chat := &fakeChat{}
	e, _ := testEnforcer(chat)

	res := e.Enforce(context.Background(), userMessage(300, "spam"),
		Decision{ShouldDelete: true, ShouldBan: false}, spamVerdict())

	if !res.Deleted || res.Banned {
		t.Errorf("result: %+v", res)
	}
	if len(chat.banned) != 0 {
		t.Errorf("banned: %v", chat.banned)
	}
	if !res.Notified {
		t.Error("delete-only still notifies")
	}
}

func TestEnforcer_EnforceJoin(t *testing.T) {
	chat := &fakeChat{}
	e, cleanups := testEnforcer(chat)
	rec := &fakeRecorder{}
	e.SetRecorder(rec)

	join := JoinEvent{
		ChatID: -1001,
		User:   Sender{ID: 400, Username: "official_support_fake"},
	}
	res := e.EnforceJoin(context.Background(), join, Verdict{IsSpam: true, Confidence: 0.95, Reason: "冒充官方"})

	if !res.Banned || !res.Notified {
		t.Fatalf("result: %+v", res)
	}
	if len(chat.banned) != 1 || chat.banned[0][1] != 400 {
		t.Errorf("banned: %v", chat.banned)
	}
	if !strings.Contains(chat.sent[0], "违规用户名") {
		t.Errorf("notice: %q", chat.sent[0])
	}
	if len(rec.bans) != 1 {
		t.Errorf("recorded bans: %+v", rec.bans)
	}
	if len(*cleanups) != 1 {
		t.Error("join notice should get a cleanup timer")
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	// Scenario grid: confident spam is removed, uncertain spam and
	// clean chatter are untouched, admins bypass entirely.
	cl := &countingClassifier{}
	chat := &fakeChat{}
	policy := testPolicy()
	enf, _ := testEnforcer(chat)
	pipe := NewPipeline(policy, NewDetector(policy, cl), enf)
	ctx := context.Background()

	// A: blatant advertisement from a regular user
	cl.verdict = Verdict{IsSpam: true, Confidence: 0.95, Reason: "兼职广告", Category: "advertising"}
	outcome := pipe.Process(ctx, userMessage(300, "加微信，日赚500，名额有限！"))
	if v, ok := outcome.Verdict(); !ok || !v.IsSpam {
		t.Fatalf("scenario A outcome: %+v", outcome)
	}
	if len(chat.deleted) != 1 || len(chat.banned) != 1 {
		t.Errorf("scenario A enforcement: deleted=%v banned=%v", chat.deleted, chat.banned)
	}

	// B: borderline message under threshold
	cl.verdict = Verdict{IsSpam: true, Confidence: 0.5, Reason: "可能是推广", Category: "promotion"}
	pipe.Process(ctx, userMessage(301, "有人了解这个项目吗？"))
	if len(chat.deleted) != 1 || len(chat.banned) != 1 {
		t.Error("scenario B must not add enforcement")
	}

	// C: normal conversation
	cl.verdict = Verdict{IsSpam: false, Confidence: 0.1, Category: "none"}
	pipe.Process(ctx, userMessage(302, "今天天气不错"))
	if len(chat.deleted) != 1 {
		t.Error("scenario C must not delete")
	}

	// D: admin posting something that looks like spam
	calls := cl.calls
	cl.verdict = Verdict{IsSpam: true, Confidence: 1}
	outcome = pipe.Process(ctx, userMessage(100, "点击链接领取奖励"))
	if cl.calls != calls {
		t.Error("scenario D: admin message must not reach the classifier")
	}
	if reason, ok := outcome.Skipped(); !ok || reason != SkipAdmin {
		t.Errorf("scenario D outcome: (%q, %v)", reason, ok)
	}
	if len(chat.deleted) != 1 || len(chat.banned) != 1 {
		t.Error("scenario D must not add enforcement")
	}
}

type fakeChecker struct {
	calls   int
	verdict Verdict
	err     error
}

func (f *fakeChecker) CheckUsername(_ context.Context, _ JoinEvent) (Verdict, error) {
	f.calls++
	return f.verdict, f.err
}

func TestPipeline_ProcessJoin(t *testing.T) {
	cl := &countingClassifier{}
	chat := &fakeChat{}
	policy := testPolicy()
	enf, _ := testEnforcer(chat)
	pipe := NewPipeline(policy, NewDetector(policy, cl), enf)
	ctx := context.Background()

	// No checker configured: joins are ignored.
	pipe.ProcessJoin(ctx, JoinEvent{ChatID: -1, User: Sender{ID: 500}})

	checker := &fakeChecker{verdict: Verdict{IsSpam: true, Confidence: 0.9, Reason: "冒充客服"}}
	pipe.SetUsernameChecker(checker)

	// Trusted user is never screened.
	pipe.ProcessJoin(ctx, JoinEvent{ChatID: -1, User: Sender{ID: 200}})
	if checker.calls != 0 {
		t.Error("whitelisted user must not be screened")
	}

	// Violating username gets banned.
	pipe.ProcessJoin(ctx, JoinEvent{ChatID: -1, User: Sender{ID: 500, Username: "kefu_guanfang"}})
	if checker.calls != 1 || len(chat.banned) != 1 {
		t.Errorf("calls=%d banned=%v", checker.calls, chat.banned)
	}

	// Checker failure fails open.
	checker.err = errors.New("timeout")
	pipe.ProcessJoin(ctx, JoinEvent{ChatID: -1, User: Sender{ID: 501}})
	if len(chat.banned) != 1 {
		t.Error("checker failure must not ban")
	}
}

func TestSenderDisplayName(t *testing.T) {
	cases := []struct {
		sender Sender
		want   string
	}{
		{Sender{Username: "alice"}, "@alice"},
		{Sender{FirstName: "小", LastName: "明"}, "小 明"},
		{Sender{FirstName: "Bob"}, "Bob"},
		{Sender{}, "unknown"},
	}
	for _, tc := range cases {
		if got := tc.sender.DisplayName(); got != tc.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tc.sender, got, tc.want)
		}
	}
}
