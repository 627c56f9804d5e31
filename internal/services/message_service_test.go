package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/chat-services/internal/broker"
	"github.com/example/chat-services/internal/domain"
)

// ---------- fakes ----------

// fakeMessageRepo implements MessageRepo in memory with injectable failures.
type fakeMessageRepo struct {
	messages []domain.Message

	createErr error
	listErr   error

	deleteCalls [][]string
	deleteErrOn int // 1-based call index to fail, 0 means never
}

func (f *fakeMessageRepo) CreateMessage(_ context.Context, _ *gorm.DB, m *domain.Message) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeMessageRepo) ListRecentMessages(_ context.Context, _ *gorm.DB, count int) ([]domain.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	// Newest first, like the real store.
	out := make([]domain.Message, len(f.messages))
	copy(out, f.messages)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func (f *fakeMessageRepo) ListMessagesByRange(_ context.Context, _ *gorm.DB, from, to time.Time) ([]domain.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Message
	for _, m := range f.messages {
		if !m.SentAt.Before(from) && !m.SentAt.After(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) ListExpiredMessages(_ context.Context, _ *gorm.DB, cutoff time.Time) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []string
	for _, m := range f.messages {
		if m.SentAt.Before(cutoff) {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (f *fakeMessageRepo) DeleteMessages(_ context.Context, _ *gorm.DB, ids []string) error {
	f.deleteCalls = append(f.deleteCalls, append([]string(nil), ids...))
	if f.deleteErrOn == len(f.deleteCalls) {
		return errors.New("batch delete failed")
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.messages[:0]
	for _, m := range f.messages {
		if !drop[m.ID] {
			kept = append(kept, m)
		}
	}
	f.messages = kept
	return nil
}

// fakeResolver maps sender ids to display names; missing ids resolve to "".
type fakeResolver struct {
	names map[string]string
	calls []string
}

func (f *fakeResolver) ResolveName(_ context.Context, senderID string) string {
	f.calls = append(f.calls, senderID)
	return f.names[senderID]
}

func newMsgSvc(r MessageRepo, resolver NameResolver, pub broker.Publisher, clk clock.Clock) *MessageService {
	if resolver == nil {
		resolver = &fakeResolver{}
	}
	return NewMessageService(nil, r, resolver, pub, clk, zerolog.Nop())
}

// ---------- SendMessage ----------

func TestSendMessage_ValidationOrder(t *testing.T) {
	svc := newMsgSvc(&fakeMessageRepo{}, nil, &fakePublisher{}, nil)

	// Blank sender is reported first, even when content is blank too.
	if _, err := svc.SendMessage(context.Background(), "", ""); err != ErrSenderIDRequired {
		t.Fatalf("expected ErrSenderIDRequired, got %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), "hi", "   "); err != ErrSenderIDRequired {
		t.Fatalf("whitespace sender: expected ErrSenderIDRequired, got %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), "  ", "m1"); err != ErrContentRequired {
		t.Fatalf("expected ErrContentRequired, got %v", err)
	}
	long := strings.Repeat("a", MaxContentChars+1)
	if _, err := svc.SendMessage(context.Background(), long, "m1"); err != ErrContentTooLong {
		t.Fatalf("expected ErrContentTooLong, got %v", err)
	}
}

func TestSendMessage_MaxLengthAccepted(t *testing.T) {
	r := &fakeMessageRepo{}
	svc := newMsgSvc(r, nil, &fakePublisher{}, nil)

	content := strings.Repeat("a", MaxContentChars)
	if _, err := svc.SendMessage(context.Background(), content, "m1"); err != nil {
		t.Fatalf("content at the limit must be accepted: %v", err)
	}
}

func TestSendMessage_LengthCountsRunesNotBytes(t *testing.T) {
	r := &fakeMessageRepo{}
	svc := newMsgSvc(r, nil, &fakePublisher{}, nil)

	// "é" is two bytes in UTF-8; the limit is measured in characters, so a
	// message of exactly MaxContentChars multibyte runes is still accepted.
	content := strings.Repeat("é", MaxContentChars)
	if _, err := svc.SendMessage(context.Background(), content, "m1"); err != nil {
		t.Fatalf("multibyte content at the limit must be accepted: %v", err)
	}

	over := strings.Repeat("é", MaxContentChars+1)
	if _, err := svc.SendMessage(context.Background(), over, "m1"); err != ErrContentTooLong {
		t.Fatalf("expected ErrContentTooLong, got %v", err)
	}
}

func TestSendMessage_ResolvedName(t *testing.T) {
	r := &fakeMessageRepo{}
	resolver := &fakeResolver{names: map[string]string{"m1": "Alice"}}
	pub := &fakePublisher{}
	clk := clock.NewMock()
	at := time.Date(2026, 6, 4, 9, 0, 0, 0, time.UTC)
	clk.Set(at)

	svc := newMsgSvc(r, resolver, pub, clk)

	m, err := svc.SendMessage(context.Background(), "hello there", "m1")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if m.SenderName != "Alice" {
		t.Fatalf("expected resolved name Alice, got %q", m.SenderName)
	}
	if m.SenderID != "m1" || m.Content != "hello there" || m.Type != domain.TypeText {
		t.Fatalf("unexpected message: %+v", m)
	}
	if !m.SentAt.Equal(at) {
		t.Fatalf("SentAt must come from the clock, got %v", m.SentAt)
	}
	if len(r.messages) != 1 {
		t.Fatalf("message must be persisted")
	}

	evts := pub.published(broker.TopicMessageSent)
	if len(evts) != 1 {
		t.Fatalf("expected 1 message-sent event, got %d", len(evts))
	}
	evt, ok := evts[0].payload.(domain.MessageSentEvent)
	if !ok || evt.ID != m.ID || evt.SenderName != "Alice" || evt.Content != "hello there" {
		t.Fatalf("unexpected event payload: %#v", evts[0].payload)
	}
}

func TestSendMessage_FallbackName(t *testing.T) {
	cases := []struct {
		senderID string
		want     string
	}{
		{"1234567890abcdef", "User_12345678"},
		{"short", "User_short"},
	}
	for _, tc := range cases {
		r := &fakeMessageRepo{}
		svc := newMsgSvc(r, &fakeResolver{}, &fakePublisher{}, nil)

		m, err := svc.SendMessage(context.Background(), "hi", tc.senderID)
		if err != nil {
			t.Fatalf("sender %q: %v", tc.senderID, err)
		}
		if m.SenderName != tc.want {
			t.Fatalf("sender %q: expected fallback %q, got %q", tc.senderID, tc.want, m.SenderName)
		}
	}
}

func TestSendMessage_ContentIsFiltered(t *testing.T) {
	r := &fakeMessageRepo{}
	pub := &fakePublisher{}
	svc := newMsgSvc(r, nil, pub, nil)

	m, err := svc.SendMessage(context.Background(), "buy SPAM now, you Badword", "m1")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	want := "buy *** now, you ***"
	if m.Content != want {
		t.Fatalf("expected filtered content %q, got %q", want, m.Content)
	}
	// The stored row and the event both carry the filtered text.
	if r.messages[0].Content != want {
		t.Fatalf("stored content not filtered: %q", r.messages[0].Content)
	}
	evt := pub.published(broker.TopicMessageSent)[0].payload.(domain.MessageSentEvent)
	if evt.Content != want {
		t.Fatalf("event content not filtered: %q", evt.Content)
	}
}

func TestSendMessage_PublishFailure_IsSwallowed(t *testing.T) {
	r := &fakeMessageRepo{}
	pub := &fakePublisher{failTopics: map[string]error{broker.TopicMessageSent: errors.New("broker down")}}
	svc := newMsgSvc(r, nil, pub, nil)

	m, err := svc.SendMessage(context.Background(), "hello", "m1")
	if err != nil {
		t.Fatalf("publish failure must not fail the send: %v", err)
	}
	if len(r.messages) != 1 || r.messages[0].ID != m.ID {
		t.Fatalf("message must be stored despite publish failure")
	}
}

func TestSendMessage_CreateFailure(t *testing.T) {
	r := &fakeMessageRepo{createErr: errors.New("disk full")}
	pub := &fakePublisher{}
	svc := newMsgSvc(r, nil, pub, nil)

	if _, err := svc.SendMessage(context.Background(), "hello", "m1"); err == nil {
		t.Fatalf("expected create error to surface")
	}
	if len(pub.events) != 0 {
		t.Fatalf("no event may be published when the write fails")
	}
}

// ---------- GetRecent / GetHistory ----------

func TestGetRecent_InvalidCount(t *testing.T) {
	svc := newMsgSvc(&fakeMessageRepo{}, nil, &fakePublisher{}, nil)
	for _, n := range []int{0, -1} {
		if _, err := svc.GetRecent(context.Background(), n); err != ErrInvalidCount {
			t.Fatalf("count %d: expected ErrInvalidCount, got %v", n, err)
		}
	}
}

func TestGetRecent_ChronologicalOrder(t *testing.T) {
	r := &fakeMessageRepo{}
	base := time.Date(2026, 6, 4, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		r.messages = append(r.messages, domain.Message{
			ID:     fmt.Sprintf("m%d", i+1),
			SentAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	svc := newMsgSvc(r, nil, &fakePublisher{}, nil)

	items, err := svc.GetRecent(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetRecent: %v", err)
	}
	// The window is the 3 newest, returned oldest first.
	want := []string{"m2", "m3", "m4"}
	if len(items) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(items))
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, items[i].ID)
		}
	}
}

func TestGetHistory_InvalidRange(t *testing.T) {
	svc := newMsgSvc(&fakeMessageRepo{}, nil, &fakePublisher{}, nil)

	to := time.Date(2026, 6, 4, 10, 0, 0, 0, time.UTC)
	if _, err := svc.GetHistory(context.Background(), to.Add(time.Second), to); err != ErrInvalidRange {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestGetHistory_InclusiveBounds(t *testing.T) {
	r := &fakeMessageRepo{}
	from := time.Date(2026, 6, 4, 10, 0, 0, 0, time.UTC)
	to := from.Add(10 * time.Minute)
	r.messages = []domain.Message{
		{ID: "before", SentAt: from.Add(-time.Second)},
		{ID: "start", SentAt: from},
		{ID: "end", SentAt: to},
		{ID: "after", SentAt: to.Add(time.Second)},
	}
	svc := newMsgSvc(r, nil, &fakePublisher{}, nil)

	items, err := svc.GetHistory(context.Background(), from, to)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(items) != 2 || items[0].ID != "start" || items[1].ID != "end" {
		t.Fatalf("expected inclusive [start end], got %+v", items)
	}
}

// ---------- Search ----------

func TestSearch_BlankQuery(t *testing.T) {
	svc := newMsgSvc(&fakeMessageRepo{}, nil, &fakePublisher{}, nil)
	if _, err := svc.Search(context.Background(), "   ", 5); err != ErrQueryRequired {
		t.Fatalf("expected ErrQueryRequired, got %v", err)
	}
}

func TestSearch_EmptyStore(t *testing.T) {
	svc := newMsgSvc(&fakeMessageRepo{}, nil, &fakePublisher{}, nil)
	hits, err := svc.Search(context.Background(), "hello", 5)
	if err != nil || hits != nil {
		t.Fatalf("empty store must yield (nil, nil), got (%v, %v)", hits, err)
	}
}

func TestSearch_RanksByRelevance(t *testing.T) {
	r := &fakeMessageRepo{}
	base := time.Date(2026, 6, 4, 11, 0, 0, 0, time.UTC)
	r.messages = []domain.Message{
		{ID: "a", Content: "deployment failed on staging", SentAt: base},
		{ID: "b", Content: "lunch anyone", SentAt: base.Add(time.Minute)},
		{ID: "c", Content: "deployment failed", SentAt: base.Add(2 * time.Minute)},
	}
	svc := newMsgSvc(r, nil, &fakePublisher{}, nil)

	hits, err := svc.Search(context.Background(), "deployment failed", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	// Exact match ranks above the longer partial match.
	if hits[0].Message.ID != "c" || hits[1].Message.ID != "a" {
		t.Fatalf("unexpected ranking: %s, %s", hits[0].Message.ID, hits[1].Message.ID)
	}
	if hits[0].Score != 1.0 {
		t.Fatalf("exact match must score 1.0, got %v", hits[0].Score)
	}
	if hits[0].Score < hits[1].Score {
		t.Fatalf("hits must be ordered best first")
	}
}

func TestSearch_ListFailureSurfaces(t *testing.T) {
	r := &fakeMessageRepo{listErr: errors.New("query failed")}
	svc := newMsgSvc(r, nil, &fakePublisher{}, nil)

	if _, err := svc.Search(context.Background(), "hello", 5); err == nil {
		t.Fatalf("expected list error to surface")
	}
}

// ---------- SweepExpired ----------

func TestSweepExpired_DeletesInBatches(t *testing.T) {
	r := &fakeMessageRepo{}
	clk := clock.NewMock()
	now := time.Date(2026, 6, 5, 12, 0, 0, 0, time.UTC)
	clk.Set(now)

	// 5 expired messages and one fresh; batch size 2 gives calls of 2, 2, 1.
	for i := 0; i < 5; i++ {
		r.messages = append(r.messages, domain.Message{
			ID:     fmt.Sprintf("old%d", i),
			SentAt: now.Add(-25 * time.Hour),
		})
	}
	r.messages = append(r.messages, domain.Message{ID: "fresh", SentAt: now.Add(-time.Minute)})

	svc := newMsgSvc(r, nil, &fakePublisher{}, clk)
	svc.Retention = 24 * time.Hour
	svc.DeleteBatch = 2

	if err := svc.SweepExpired(context.Background()); err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if len(r.deleteCalls) != 3 {
		t.Fatalf("expected 3 delete batches, got %d", len(r.deleteCalls))
	}
	sizes := []int{len(r.deleteCalls[0]), len(r.deleteCalls[1]), len(r.deleteCalls[2])}
	if sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Fatalf("unexpected batch sizes: %v", sizes)
	}
	if len(r.messages) != 1 || r.messages[0].ID != "fresh" {
		t.Fatalf("only the fresh message may survive, got %+v", r.messages)
	}
}

func TestSweepExpired_RetentionEdgeIsKept(t *testing.T) {
	r := &fakeMessageRepo{}
	clk := clock.NewMock()
	now := time.Date(2026, 6, 5, 12, 0, 0, 0, time.UTC)
	clk.Set(now)

	r.messages = []domain.Message{{ID: "edge", SentAt: now.Add(-24 * time.Hour)}}

	svc := newMsgSvc(r, nil, &fakePublisher{}, clk)
	svc.Retention = 24 * time.Hour

	if err := svc.SweepExpired(context.Background()); err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if len(r.deleteCalls) != 0 {
		t.Fatalf("message exactly at the cutoff must be retained")
	}
}

func TestSweepExpired_FailedBatchContinues(t *testing.T) {
	r := &fakeMessageRepo{deleteErrOn: 1}
	clk := clock.NewMock()
	now := time.Date(2026, 6, 5, 12, 0, 0, 0, time.UTC)
	clk.Set(now)

	for i := 0; i < 4; i++ {
		r.messages = append(r.messages, domain.Message{
			ID:     fmt.Sprintf("old%d", i),
			SentAt: now.Add(-25 * time.Hour),
		})
	}

	svc := newMsgSvc(r, nil, &fakePublisher{}, clk)
	svc.DeleteBatch = 2

	if err := svc.SweepExpired(context.Background()); err != nil {
		t.Fatalf("sweep must tolerate a failed batch: %v", err)
	}
	if len(r.deleteCalls) != 2 {
		t.Fatalf("expected both batches attempted, got %d", len(r.deleteCalls))
	}
	// First batch failed, second succeeded.
	if len(r.messages) != 2 {
		t.Fatalf("expected 2 survivors from the failed batch, got %d", len(r.messages))
	}
}

func TestSweepExpired_ListFailureSurfaces(t *testing.T) {
	r := &fakeMessageRepo{listErr: errors.New("query failed")}
	svc := newMsgSvc(r, nil, &fakePublisher{}, nil)

	if err := svc.SweepExpired(context.Background()); err == nil {
		t.Fatalf("expected list error to surface")
	}
}

// ---------- FilterContent ----------

func TestFilterContent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"clean message", "clean message"},
		{"spam", "***"},
		{"SPAM", "***"},
		{"SpAm and badword", "*** and ***"},
		{"antispammer", "anti***mer"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := FilterContent(tc.in); got != tc.want {
			t.Fatalf("FilterContent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
