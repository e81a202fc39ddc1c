package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley-backend/internal/backend"
	"github.com/parleyhq/parley-backend/internal/models"
	"github.com/parleyhq/parley-backend/internal/repository"
	"github.com/parleyhq/parley-backend/internal/tokenizer"
)

func TestSummarizerRendersBatchWithRecencyTags(t *testing.T) {
	env := newTestEnv()
	sess := env.createSession(t)
	env.seedConversation(t, sess.ID, 5, minutesAgo(6))

	_, err := env.svc.Summarizer.Run(context.Background(), sess.ID)
	require.NoError(t, err)

	calls := env.stub.Calls()
	require.Len(t, calls, 1)
	req := calls[0]

	assert.Equal(t, backend.TaskSummarize, req.Task)
	assert.Contains(t, req.System, "500 words")
	assert.LessOrEqual(t, req.Temperature, float32(0.3))
	assert.Positive(t, req.MaxTokens)

	require.Len(t, req.Messages, 1)
	body := req.Messages[0].Content
	assert.NotContains(t, body, "Previous summary:")
	assert.Contains(t, body, "Conversation:\n")
	assert.Contains(t, body, "user: opening question")
	assert.Equal(t, 3, strings.Count(body, "[recent] "))

	// The tagged lines are the last three of the batch.
	lines := strings.Split(strings.TrimSpace(body), "\n")
	tail := lines[len(lines)-3:]
	for _, line := range tail {
		assert.True(t, strings.HasPrefix(line, "[recent] "), "line %q", line)
	}
}

func TestSummarizerTagsWholeShortBatch(t *testing.T) {
	env := newTestEnv()
	sess := env.createSession(t)
	env.seedMessage(t, sess.ID, models.RoleUser, "hi", minutesAgo(6))
	env.seedMessage(t, sess.ID, models.RoleAssistant, "hello", minutesAgo(6))

	_, err := env.svc.Summarizer.Run(context.Background(), sess.ID)
	require.NoError(t, err)

	calls := env.stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 2, strings.Count(calls[0].Messages[0].Content, "[recent] "))
}

func TestSummarizerFoldsPreviousSummary(t *testing.T) {
	env := newTestEnv()
	sess := env.createSession(t)
	env.stub.Respond(backend.TaskSummarize, "first summary", "second summary")

	env.seedConversation(t, sess.ID, 5, minutesAgo(20))
	first, err := env.svc.Summarizer.Run(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, first)

	moreAt := minutesAgo(6)
	env.seedMessage(t, sess.ID, models.RoleUser, "one more thing", moreAt)
	last := env.seedMessage(t, sess.ID, models.RoleAssistant, "of course", moreAt+1)

	second, err := env.svc.Summarizer.Run(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, last.ID, second.CoversMessageID)

	calls := env.stub.Calls()
	require.Len(t, calls, 2)
	body := calls[1].Messages[0].Content
	assert.Contains(t, body, "Previous summary:\nfirst summary")
	assert.Contains(t, body, "user: one more thing")
	assert.NotContains(t, body, "opening question", "covered messages are not re-rendered")

	// Historical records persist; only the current pointer moves.
	sums, err := env.index.Summaries().ListBySession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, sums, 2)

	got, err := env.index.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentSummaryID)
	assert.Equal(t, second.ID, *got.CurrentSummaryID)

	// Coverage invariant: everything marked summarized is exactly the union
	// of the two covered batches.
	unsummarized, err := env.index.Messages().ListUnsummarized(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, unsummarized)
	total, err := env.index.Messages().Count(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, total)
}

func TestSummarizerEmptyBatchIsNoOp(t *testing.T) {
	env := newTestEnv()
	sess := env.createSession(t)

	sum, err := env.svc.Summarizer.Run(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Nil(t, sum)
	assert.Equal(t, 0, env.stub.CallCount(backend.TaskSummarize))
}

func TestSummarizerTokenCountsTheSummaryText(t *testing.T) {
	env := newTestEnv()
	sess := env.createSession(t)
	env.seedConversation(t, sess.ID, 5, minutesAgo(6))
	env.stub.Respond(backend.TaskSummarize, strings.Repeat("word ", 40))

	sum, err := env.svc.Summarizer.Run(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Positive(t, sum.TokenCount)
}

type failingSummaryIndex struct {
	repository.SummaryRepository
}

func (failingSummaryIndex) Create(context.Context, *models.Summary, []string) error {
	return errors.New("index unavailable")
}

func TestSummaryBlobWrittenBeforeIndexRecord(t *testing.T) {
	env := newTestEnv()
	sess := env.createSession(t)
	env.seedConversation(t, sess.ID, 5, minutesAgo(6))
	before := env.store.count(sess.ID)

	logger, _ := test.NewNullLogger()
	summarizer := NewSummarizer(
		env.index.Messages(),
		failingSummaryIndex{env.index.Summaries()},
		env.store,
		tokenizer.Heuristic{},
		env.stub,
		logger,
	)

	_, err := summarizer.Run(context.Background(), sess.ID)
	require.Error(t, err)

	// The summary text blob is stranded but present; no summary record and
	// no coverage flags were written.
	assert.Equal(t, before+1, env.store.count(sess.ID))
	sums, err := env.index.Summaries().ListBySession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, sums)
	unsummarized, err := env.index.Messages().ListUnsummarized(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, unsummarized, 6)
}
