package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionQueueStartsWithFallbackBank(t *testing.T) {
	q := newQuestionQueue()

	assert.Equal(t, len(fallbackQuestions), q.Remaining())

	first, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fallbackQuestions[0], first)
}

func TestQuestionQueueBatchOrderAndExhaustion(t *testing.T) {
	q := newQuestionQueue()

	batch := []Question{
		{Text: "one", Choices: []string{"a", "b", "c", "d"}, AnswerIndex: 0},
		{Text: "two", Choices: []string{"a", "b", "c", "d"}, AnswerIndex: 3},
	}
	assert.Equal(t, 2, q.SetBatch(batch))

	first, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "one", first.Text)

	second, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "two", second.Text)

	_, err = q.Next(context.Background())
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestQuestionQueueResetRestoresFallback(t *testing.T) {
	q := newQuestionQueue()

	q.SetBatch([]Question{{Text: "custom", Choices: []string{"a", "b", "c", "d"}}})
	q.Reset()

	assert.Equal(t, len(fallbackQuestions), q.Remaining())

	first, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fallbackQuestions[0].Text, first.Text)
}

func TestFallbackBankIsWellFormed(t *testing.T) {
	for _, q := range fallbackQuestions {
		assert.Len(t, q.Choices, choiceCount)
		assert.GreaterOrEqual(t, q.AnswerIndex, 0)
		assert.Less(t, q.AnswerIndex, choiceCount)
		assert.NotEmpty(t, q.Text)
	}
}
