package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/dateparse"
	"github.com/quantumlife/lifectx/internal/query"
	"github.com/quantumlife/lifectx/internal/storage"
)

func testEventStore(t *testing.T) *EventStore {
	t.Helper()
	s := NewEventStore(storage.NewMemory(), WithClock(newClock().Now), WithIDGenerator(sequentialIDs()))
	if _, err := s.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	return s
}

func testContextStore(t *testing.T, opts ...Option) *ContextStore {
	t.Helper()
	opts = append([]Option{WithClock(newClock().Now), WithIDGenerator(sequentialIDs())}, opts...)
	s := NewContextStore(storage.NewMemory(), opts...)
	if _, err := s.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	return s
}

// =============================================================================
// EventStore
// =============================================================================

func TestEventStore_AddDefaults(t *testing.T) {
	s := testEventStore(t)
	eventDate := t0.AddDate(0, 1, 0)

	added, err := s.Add(context.Background(), core.NewSocialEvent{
		Type:      core.EventWedding,
		Title:     "Minji's wedding",
		EventDate: eventDate,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if added.Status != core.EventPending {
		t.Errorf("Status = %s, want pending", added.Status)
	}
	if added.Priority != core.PriorityMedium {
		t.Errorf("Priority = %s, want medium", added.Priority)
	}
	if !added.CreatedAt.Equal(added.UpdatedAt) {
		t.Errorf("CreatedAt %v != UpdatedAt %v", added.CreatedAt, added.UpdatedAt)
	}
	if added.GiftSent || added.GiftSentDate != nil || added.ReminderSet || added.ReminderDate != nil {
		t.Errorf("gift/reminder fields should be unset: %+v", added)
	}
}

func TestEventStore_AddRequiresFields(t *testing.T) {
	s := testEventStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   core.NewSocialEvent
	}{
		{"no type", core.NewSocialEvent{Title: "x", EventDate: t0}},
		{"no title", core.NewSocialEvent{Type: core.EventFuneral, EventDate: t0}},
		{"no date", core.NewSocialEvent{Type: core.EventFuneral, Title: "x"}},
		{"gift date without gift", core.NewSocialEvent{Type: core.EventFuneral, Title: "x", EventDate: t0, GiftSentDate: &t0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Add(ctx, tt.in); !errors.Is(err, core.ErrValidation) {
				t.Errorf("Add() error = %v, want ErrValidation", err)
			}
		})
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestEventStore_UpdateRejectsUnpairedGiftDate(t *testing.T) {
	s := testEventStore(t)
	ctx := context.Background()
	e, _ := s.Add(ctx, core.NewSocialEvent{Type: core.EventBirthday, Title: "b", EventDate: t0})

	at := t0.Add(time.Hour)
	if _, err := s.Update(ctx, e.ID, core.SocialEventUpdate{GiftSentDate: &at}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Update() error = %v, want ErrValidation", err)
	}
	if got, _ := s.Get(e.ID); got.GiftSentDate != nil {
		t.Errorf("GiftSentDate = %v after rejected update", got.GiftSentDate)
	}
}

func TestEventStore_MarkGiftSent(t *testing.T) {
	s := testEventStore(t)
	ctx := context.Background()
	e, _ := s.Add(ctx, core.NewSocialEvent{
		Type:      core.EventWedding,
		Title:     "w",
		EventDate: t0,
		Contact:   &core.Contact{Name: "Hyun", Relationship: "family"},
	})

	if amount, err := s.SuggestGift(e.ID); err != nil || amount != 150000 {
		t.Fatalf("SuggestGift() = %d, %v, want 150000", amount, err)
	}

	at := t0.Add(2 * time.Hour)
	got, err := s.MarkGiftSent(ctx, e.ID, nil, at)
	if err != nil {
		t.Fatalf("MarkGiftSent() error = %v", err)
	}
	if !got.GiftSent || got.GiftSentDate == nil || !got.GiftSentDate.Equal(at) {
		t.Errorf("gift not marked sent: %+v", got)
	}
	if got.GiftAmount == nil || *got.GiftAmount != 150000 {
		t.Errorf("GiftAmount = %v, want recommended 150000", got.GiftAmount)
	}

	// Turning the flag off drops the paired date
	off := false
	got, err = s.Update(ctx, e.ID, core.SocialEventUpdate{GiftSent: &off})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.GiftSentDate != nil {
		t.Errorf("GiftSentDate = %v, want nil", got.GiftSentDate)
	}
	if got.GiftAmount == nil || *got.GiftAmount != 150000 {
		t.Errorf("GiftAmount = %v, want kept", got.GiftAmount)
	}
}

func TestEventStore_MarkGiftSentKeepsExplicitAmount(t *testing.T) {
	s := testEventStore(t)
	ctx := context.Background()
	stored := 70000
	e, _ := s.Add(ctx, core.NewSocialEvent{Type: core.EventFuneral, Title: "f", EventDate: t0, GiftAmount: &stored})

	got, err := s.MarkGiftSent(ctx, e.ID, nil, t0)
	if err != nil {
		t.Fatalf("MarkGiftSent() error = %v", err)
	}
	if *got.GiftAmount != stored {
		t.Errorf("GiftAmount = %d, want %d", *got.GiftAmount, stored)
	}

	if _, err := s.MarkGiftSent(ctx, "ghost", nil, t0); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("MarkGiftSent(ghost) error = %v, want ErrNotFound", err)
	}
	if _, err := s.SuggestGift("ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("SuggestGift(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestEventStore_SetReminder(t *testing.T) {
	s := testEventStore(t)
	ctx := context.Background()
	e, _ := s.Add(ctx, core.NewSocialEvent{Type: core.EventGraduation, Title: "g", EventDate: t0.AddDate(0, 0, 7)})

	at := t0.AddDate(0, 0, 6)
	got, err := s.SetReminder(ctx, e.ID, &at)
	if err != nil {
		t.Fatalf("SetReminder() error = %v", err)
	}
	if !got.ReminderSet || got.ReminderDate == nil || !got.ReminderDate.Equal(at) {
		t.Errorf("reminder not set: %+v", got)
	}

	got, err = s.SetReminder(ctx, e.ID, nil)
	if err != nil {
		t.Fatalf("SetReminder(nil) error = %v", err)
	}
	if got.ReminderSet || got.ReminderDate != nil {
		t.Errorf("reminder not cleared: %+v", got)
	}
}

func TestEventStore_Query(t *testing.T) {
	s := testEventStore(t)
	ctx := context.Background()
	s.Add(ctx, core.NewSocialEvent{Type: core.EventWedding, Title: "late", EventDate: t0.AddDate(0, 2, 0)})
	s.Add(ctx, core.NewSocialEvent{Type: core.EventFuneral, Title: "funeral", EventDate: t0.AddDate(0, 0, 1)})
	s.Add(ctx, core.NewSocialEvent{Type: core.EventWedding, Title: "early", EventDate: t0.AddDate(0, 1, 0)})

	got := s.Query(query.EventOptions{Type: core.EventWedding, Sort: query.Sort{Field: query.SortEventDate}})
	var titles []string
	for _, e := range got {
		titles = append(titles, e.Title)
	}
	if diff := cmp.Diff([]string{"early", "late"}, titles); diff != "" {
		t.Errorf("Query() mismatch (-want +got):\n%s", diff)
	}
}

// =============================================================================
// ContextStore
// =============================================================================

func TestContextStore_Capture(t *testing.T) {
	s := testContextStore(t, WithTransitionGuard(true))
	ctx := context.Background()

	got, err := s.Capture(ctx, &core.ChatData{
		Platform:       "kakao",
		Sender:         "Seojun",
		Message:        "돌잔치 5월 8일 12시",
		ConversationID: "c-1",
	})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if got.Status != core.ContextCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if len(got.Entities) != 1 {
		t.Fatalf("Entities = %+v, want one date", got.Entities)
	}
	ent := got.Entities[0]
	if ent.Type != core.EntityDate || ent.Text != "5월 8일" || ent.Confidence != dateparse.ConfidenceMonthDay {
		t.Errorf("entity = %+v", ent)
	}
	text := core.ContextText(got.Data)
	if text[ent.Start:ent.End] != ent.Text {
		t.Errorf("entity span %q does not match text %q", text[ent.Start:ent.End], ent.Text)
	}
}

func TestContextStore_CaptureWithoutDate(t *testing.T) {
	s := testContextStore(t)

	got, err := s.Capture(context.Background(), &core.ManualData{Content: "buy a card"})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if got.Status != core.ContextCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if got.Entities == nil || len(got.Entities) != 0 {
		t.Errorf("Entities = %#v, want empty", got.Entities)
	}
}

func TestContextStore_CaptureRejectsBadPayload(t *testing.T) {
	s := testContextStore(t)

	if _, err := s.Capture(context.Background(), &core.ChatData{Platform: "kakao"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Capture() error = %v, want ErrValidation", err)
	}
	if _, err := s.Capture(context.Background(), nil); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Capture(nil) error = %v, want ErrValidation", err)
	}
	var chat *core.ChatData
	if _, err := s.Add(context.Background(), core.NewContext{Data: chat}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Add(typed nil) error = %v, want ErrValidation", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestContextStore_UpdateRejectsTypedNilData(t *testing.T) {
	s := testContextStore(t)
	ctx := context.Background()
	c, _ := s.Add(ctx, core.NewContext{Data: &core.ManualData{Content: "note"}})

	var manual *core.ManualData
	if _, err := s.Update(ctx, c.ID, core.ContextUpdate{Data: manual}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("Update() error = %v, want ErrValidation", err)
	}
	got, _ := s.Get(c.ID)
	if d, ok := got.Data.(*core.ManualData); !ok || d.Content != "note" {
		t.Errorf("Data = %#v, want the original note", got.Data)
	}
}

func TestContextStore_SourceIsImmutable(t *testing.T) {
	s := testContextStore(t)
	ctx := context.Background()
	c, _ := s.Add(ctx, core.NewContext{Data: &core.ManualData{Content: "note"}})

	_, err := s.Update(ctx, c.ID, core.ContextUpdate{Data: &core.ChatData{Platform: "sms", Message: "hi"}})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("Update() error = %v, want ErrValidation", err)
	}

	got, err := s.Update(ctx, c.ID, core.ContextUpdate{Data: &core.ManualData{Content: "edited"}})
	if err != nil {
		t.Fatalf("Update() same source error = %v", err)
	}
	if d, ok := got.Data.(*core.ManualData); !ok || d.Content != "edited" {
		t.Errorf("Data = %#v", got.Data)
	}
}

func TestContextStore_StrictLifecycle(t *testing.T) {
	s := testContextStore(t, WithTransitionGuard(true))
	ctx := context.Background()
	c, _ := s.Add(ctx, core.NewContext{Data: &core.VoiceData{AudioPath: "a.m4a", Duration: 3}})

	if _, err := s.Complete(ctx, c.ID, nil); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Complete() from pending error = %v, want ErrValidation", err)
	}
	if _, err := s.StartProcessing(ctx, c.ID); err != nil {
		t.Fatalf("StartProcessing() error = %v", err)
	}
	got, err := s.Fail(ctx, c.ID)
	if err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if got.Status != core.ContextFailed {
		t.Errorf("Status = %s, want failed", got.Status)
	}
	if _, err := s.StartProcessing(ctx, c.ID); !errors.Is(err, core.ErrValidation) {
		t.Errorf("StartProcessing() from failed error = %v, want ErrValidation", err)
	}
}

func TestContextStore_PersistsVariants(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	s := NewContextStore(backend)

	payloads := []core.ContextData{
		&core.ScreenshotData{ImagePath: "s.png", ExtractedText: "2025-05-01 결혼식", App: &core.AppInfo{Name: "Gallery"}},
		&core.ChatData{Platform: "kakao", Sender: "a", Message: "내일 봐", Attachments: []string{"img.jpg"}},
		&core.LocationData{LocationName: "Seoul Station", Latitude: 37.55, Longitude: 126.97, Address: &core.Address{City: "Seoul"}},
		&core.VoiceData{AudioPath: "v.m4a", Duration: 12.5, Transcript: "call mom", Language: "ko"},
		&core.ManualData{Content: "note", Tags: []string{"x"}},
	}
	for _, p := range payloads {
		if _, err := s.Capture(ctx, p); err != nil {
			t.Fatalf("Capture(%s) error = %v", p.Source(), err)
		}
	}

	reloaded := NewContextStore(backend)
	got, err := reloaded.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if diff := cmp.Diff(s.List(), got); diff != "" {
		t.Errorf("reloaded contexts mismatch (-want +got):\n%s", diff)
	}

	bySource := reloaded.Query(query.ContextOptions{Source: core.SourceLocation})
	if len(bySource) != 1 {
		t.Errorf("Query(source=location) = %d results, want 1", len(bySource))
	}
}
