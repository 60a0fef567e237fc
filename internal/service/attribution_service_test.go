package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promora-go-api/internal/attribution"
	"github.com/noah-isme/promora-go-api/internal/dto"
	"github.com/noah-isme/promora-go-api/internal/models"
	"github.com/noah-isme/promora-go-api/internal/repository"
)

type attributionFixture struct {
	service  AttributionService
	registry *attribution.Registry
	logs     repository.InteractionLogRepository
	clock    *stepClock
	sent     []attribution.TrackEvent
}

func newAttributionFixture(t *testing.T, counter stubCounter) *attributionFixture {
	t.Helper()

	f := &attributionFixture{clock: newStepClock()}
	db := setupServiceTestDB(t, &models.InteractionLog{})
	f.logs = repository.NewInteractionLogRepository(db)
	summary := NewSummaryStore(setupRedis(t), time.Hour, testLogger())

	upstream := attribution.DispatcherFunc(func(_ context.Context, event attribution.TrackEvent) attribution.DispatchResult {
		f.sent = append(f.sent, event)
		return attribution.Sent(event, 201)
	})
	dispatcher := NewTrackingDispatcher(upstream, f.logs, summary, nil, testLogger())
	f.registry = attribution.NewRegistry(dispatcher, testLogger(), attribution.WithClock(f.clock.Now))

	validate := validator.New(validator.WithRequiredStructEnabled())
	f.service = NewAttributionService(f.registry, summary, f.logs, counter, validate, testLogger())
	return f
}

func TestAttributionServiceCopyPasteModifyFlow(t *testing.T) {
	f := newAttributionFixture(t, stubCounter{})
	ctx := context.Background()

	copied, err := f.service.Copy(ctx, "session-1", dto.CodeCopyRequest{Code: "func add(a, b int) int {\n\treturn a + b\n}", Model: "gpt-4"})
	require.NoError(t, err)
	require.Equal(t, "gpt-4", copied.Model)

	f.clock.Advance(3 * time.Second)
	pasted, err := f.service.Paste(ctx, "session-1", dto.CodePasteRequest{
		PastedText: "func add(a, b int) int {\n\treturn a + b\n}",
		LineNumber: 12,
	})
	require.NoError(t, err)
	require.True(t, pasted.AISourced)
	require.Equal(t, []int{12, 13, 14}, pasted.MarkedLines)

	modified, err := f.service.Modify(ctx, "session-1", dto.CodeModifyRequest{
		LineNumber: 13,
		OldText:    "\treturn a + b",
		NewText:    "\treturn a + b + carry",
	})
	require.NoError(t, err)
	require.True(t, modified.Tracked)
	require.Greater(t, modified.Depth, 0.0)

	untracked, err := f.service.Modify(ctx, "session-1", dto.CodeModifyRequest{LineNumber: 40, OldText: "x", NewText: "y"})
	require.NoError(t, err)
	require.False(t, untracked.Tracked)

	require.Len(t, f.sent, 3)
	require.Equal(t, attribution.EventCodePastedFromAI, f.sent[0].EventType)
	require.Equal(t, attribution.EventCodeCopiedFromAI, f.sent[1].EventType)
	require.Equal(t, attribution.EventCodeModified, f.sent[2].EventType)

	summary, err := f.service.Summary(ctx, "session-1")
	require.NoError(t, err)
	require.True(t, summary.Active)
	require.Equal(t, 3, summary.AILineCount)
	require.Equal(t, 1, summary.Events["code_pasted_from_ai"])
	require.Equal(t, 1, summary.Modifications)
	require.InDelta(t, modified.Depth, summary.AverageModificationDepth, 1e-9)

	items, total, err := f.service.Interactions(ctx, dto.InteractionLogQuery{SessionID: "session-1", EventType: "code_modified"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, 13, *items[0].CodeLineNumber)
}

func TestAttributionServiceStalePasteIsNotAttributed(t *testing.T) {
	f := newAttributionFixture(t, stubCounter{})
	ctx := context.Background()

	_, err := f.service.Copy(ctx, "session-1", dto.CodeCopyRequest{Code: "print('hi')"})
	require.NoError(t, err)
	f.clock.Advance(45 * time.Second)

	outcome, err := f.service.Paste(ctx, "session-1", dto.CodePasteRequest{PastedText: "print('hi')", LineNumber: 1})
	require.NoError(t, err)
	require.False(t, outcome.AISourced)
	require.Empty(t, f.sent)

	summary, err := f.service.Summary(ctx, "session-1")
	require.NoError(t, err)
	require.Zero(t, summary.AILineCount)
	require.Empty(t, summary.Events)
}

func TestAttributionServiceOpenAndClose(t *testing.T) {
	f := newAttributionFixture(t, stubCounter{})
	ctx := context.Background()

	opened, err := f.service.Open(ctx, " session-9 ")
	require.NoError(t, err)
	require.True(t, opened.Created)
	require.Equal(t, "session-9", opened.SessionID)

	again, err := f.service.Open(ctx, "session-9")
	require.NoError(t, err)
	require.False(t, again.Created)

	closed, err := f.service.Close(ctx, "session-9")
	require.NoError(t, err)
	require.True(t, closed)

	closed, err = f.service.Close(ctx, "session-9")
	require.NoError(t, err)
	require.False(t, closed)

	_, err = f.service.Open(ctx, "   ")
	require.ErrorIs(t, err, ErrSessionRequired)
}

func TestAttributionServiceTrackValidatesAndEstimatesTokens(t *testing.T) {
	f := newAttributionFixture(t, stubCounter{perText: 7})
	ctx := context.Background()

	result, err := f.service.Track(ctx, "session-1", []byte(`{"sessionId":"spoofed","eventType":"ai_prompt_sent","model":"gpt-4","promptText":"explain","responseText":"sure"}`))
	require.NoError(t, err)
	require.Equal(t, attribution.DispatchSent, result.Status)
	require.Len(t, f.sent, 1)
	require.Equal(t, "session-1", f.sent[0].SessionID)
	require.Equal(t, 14, f.sent[0].TokensUsed)

	result, err = f.service.Track(ctx, "session-1", []byte(`{"eventType":"ai_prompt_sent","tokensUsed":3}`))
	require.NoError(t, err)
	require.Equal(t, 3, f.sent[1].TokensUsed)

	for _, payload := range []string{
		`{"model":"gpt-4"}`,
		`{"eventType":""}`,
		`{"eventType":"x","codeLineNumber":-1}`,
		`{"eventType":"x","unknown":true}`,
		`not json`,
	} {
		_, err := f.service.Track(ctx, "session-1", []byte(payload))
		require.ErrorIs(t, err, ErrInvalidTrackEvent, payload)
	}
	require.Len(t, f.sent, 2)
}

func TestAttributionServiceTrackIgnoresCounterFailure(t *testing.T) {
	f := newAttributionFixture(t, stubCounter{err: errors.New("encoding unavailable")})

	_, err := f.service.Track(context.Background(), "session-1", []byte(`{"eventType":"ai_prompt_sent","promptText":"hello"}`))
	require.NoError(t, err)
	require.Zero(t, f.sent[0].TokensUsed)
}

func TestAttributionServiceRejectsInvalidInteractionQuery(t *testing.T) {
	f := newAttributionFixture(t, stubCounter{})

	_, _, err := f.service.Interactions(context.Background(), dto.InteractionLogQuery{SessionID: "session-1", DispatchStatus: "lost"})
	require.Error(t, err)
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}
