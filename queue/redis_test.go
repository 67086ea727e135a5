package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeoinnovations-resources/Flight/config"
)

const testQueueName = "dataset_refresh"

func testQueue(t *testing.T, maxAttempts int) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.RedisConfig{
		QueueGroup:             "test_workers",
		QueueStreamPrefix:      "test",
		QueueBlockTimeout:      10 * time.Millisecond,
		QueueVisibilityTimeout: time.Minute,
	}
	return NewRedisQueueWithClient(client, cfg, maxAttempts)
}

type refreshPayload struct {
	Reason string `json:"reason"`
}

func TestEnqueueDequeueAck(t *testing.T) {
	q := testQueue(t, 3)
	ctx := context.Background()

	jobID, err := q.Enqueue(ctx, testQueueName, refreshPayload{Reason: "manual"})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	status, err := q.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	job, err := q.Dequeue(ctx, testQueueName)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, testQueueName, job.Type)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, StatusProcessing, job.Status)

	var payload refreshPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "manual", payload.Reason)

	require.NoError(t, q.Ack(ctx, testQueueName, jobID))

	status, err = q.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)

	stats, err := q.GetQueueStats(ctx, testQueueName)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats[StatusPending])
	assert.Equal(t, int64(0), stats[StatusProcessing])
	assert.Equal(t, int64(1), stats[StatusCompleted])
}

func TestDequeue_EmptyQueue(t *testing.T) {
	q := testQueue(t, 3)

	job, err := q.Dequeue(context.Background(), testQueueName)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestNack_RequeuesUntilMaxAttempts(t *testing.T) {
	q := testQueue(t, 2)
	ctx := context.Background()

	jobID, err := q.Enqueue(ctx, testQueueName, refreshPayload{Reason: "scheduled"})
	require.NoError(t, err)

	// First attempt fails: job goes back to pending.
	job, err := q.Dequeue(ctx, testQueueName)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, q.Nack(ctx, testQueueName, jobID))

	status, err := q.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	// Second attempt fails: attempts exhausted, job is failed.
	job, err = q.Dequeue(ctx, testQueueName)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 2, job.Attempts)
	require.NoError(t, q.Nack(ctx, testQueueName, jobID))

	status, err = q.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)

	stats, err := q.GetQueueStats(ctx, testQueueName)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[StatusFailed])
}

func TestGetJob_Unknown(t *testing.T) {
	q := testQueue(t, 3)
	_, err := q.GetJob(context.Background(), "no-such-job")
	assert.Error(t, err)
}
