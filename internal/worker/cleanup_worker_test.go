package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockTraceCleaner struct {
	mock.Mock
}

func (m *MockTraceCleaner) DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTraceCleaner) DeleteOlderThan(ctx context.Context, projectID uuid.UUID, days int) (int64, error) {
	args := m.Called(ctx, projectID, days)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTraceCleaner) DeleteOrphanSpans(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTraceCleaner) CountOrphanSpans(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockProjectLister struct {
	mock.Mock
}

func (m *MockProjectLister) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockTaskEnqueuer struct {
	mock.Mock
}

func (m *MockTaskEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

func newTestCleanupWorker(traces *MockTraceCleaner, projects *MockProjectLister, client *MockTaskEnqueuer) *CleanupWorker {
	return NewCleanupWorker(zap.NewNop(), traces, projects, client)
}

func TestNewProjectClearTask(t *testing.T) {
	projectID := uuid.New()

	task, err := NewProjectClearTask(&ProjectClearPayload{ProjectID: projectID})
	require.NoError(t, err)
	assert.Equal(t, TypeProjectClear, task.Type())

	var decoded ProjectClearPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, projectID, decoded.ProjectID)
}

func TestNewProjectRetentionTask(t *testing.T) {
	projectID := uuid.New()

	task, err := NewProjectRetentionTask(&ProjectRetentionPayload{
		ProjectID:     projectID,
		RetentionDays: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, TypeProjectRetention, task.Type())

	var decoded ProjectRetentionPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, projectID, decoded.ProjectID)
	assert.Equal(t, 90, decoded.RetentionDays)
}

func TestCleanupWorker_ProcessProjectClearTask(t *testing.T) {
	t.Run("deletes all traces in the project", func(t *testing.T) {
		projectID := uuid.New()
		traces := new(MockTraceCleaner)
		traces.On("DeleteByProject", mock.Anything, projectID).Return(int64(42), nil)

		w := newTestCleanupWorker(traces, nil, nil)
		task, err := NewProjectClearTask(&ProjectClearPayload{ProjectID: projectID})
		require.NoError(t, err)

		require.NoError(t, w.ProcessProjectClearTask(context.Background(), task))
		traces.AssertExpectations(t)
	})

	t.Run("surfaces repository failures for retry", func(t *testing.T) {
		projectID := uuid.New()
		traces := new(MockTraceCleaner)
		traces.On("DeleteByProject", mock.Anything, projectID).Return(int64(0), errors.New("connection reset"))

		w := newTestCleanupWorker(traces, nil, nil)
		task, err := NewProjectClearTask(&ProjectClearPayload{ProjectID: projectID})
		require.NoError(t, err)

		err = w.ProcessProjectClearTask(context.Background(), task)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		w := newTestCleanupWorker(new(MockTraceCleaner), nil, nil)
		task := asynq.NewTask(TypeProjectClear, []byte("{not json"))

		require.Error(t, w.ProcessProjectClearTask(context.Background(), task))
	})
}

func TestCleanupWorker_ProcessRetentionSweepTask(t *testing.T) {
	t.Run("enqueues one retention task per project", func(t *testing.T) {
		projectA := uuid.New()
		projectB := uuid.New()

		projects := new(MockProjectLister)
		projects.On("ListIDs", mock.Anything).Return([]uuid.UUID{projectA, projectB}, nil)

		var enqueuedProjects []uuid.UUID
		client := new(MockTaskEnqueuer)
		client.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				task := args.Get(1).(*asynq.Task)
				require.Equal(t, TypeProjectRetention, task.Type())

				var payload ProjectRetentionPayload
				require.NoError(t, json.Unmarshal(task.Payload(), &payload))
				assert.Equal(t, 30, payload.RetentionDays)
				enqueuedProjects = append(enqueuedProjects, payload.ProjectID)
			}).
			Return(&asynq.TaskInfo{ID: "task-1", Queue: "low"}, nil).
			Times(2)

		w := newTestCleanupWorker(new(MockTraceCleaner), projects, client)
		task, err := NewRetentionSweepTask(&RetentionSweepPayload{RetentionDays: 30})
		require.NoError(t, err)

		require.NoError(t, w.ProcessRetentionSweepTask(context.Background(), task))
		assert.Equal(t, []uuid.UUID{projectA, projectB}, enqueuedProjects)
		projects.AssertExpectations(t)
		client.AssertExpectations(t)
	})

	t.Run("skips sweep without a retention period", func(t *testing.T) {
		projects := new(MockProjectLister)
		client := new(MockTaskEnqueuer)

		w := newTestCleanupWorker(new(MockTraceCleaner), projects, client)
		task, err := NewRetentionSweepTask(&RetentionSweepPayload{RetentionDays: 0})
		require.NoError(t, err)

		require.NoError(t, w.ProcessRetentionSweepTask(context.Background(), task))
		projects.AssertNotCalled(t, "ListIDs", mock.Anything)
		client.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stops fanout on enqueue failure", func(t *testing.T) {
		projects := new(MockProjectLister)
		projects.On("ListIDs", mock.Anything).Return([]uuid.UUID{uuid.New(), uuid.New()}, nil)

		client := new(MockTaskEnqueuer)
		client.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("redis unavailable")).Once()

		w := newTestCleanupWorker(new(MockTraceCleaner), projects, client)
		task, err := NewRetentionSweepTask(&RetentionSweepPayload{RetentionDays: 30})
		require.NoError(t, err)

		err = w.ProcessRetentionSweepTask(context.Background(), task)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis unavailable")
		client.AssertNumberOfCalls(t, "EnqueueContext", 1)
	})
}

func TestCleanupWorker_ProcessProjectRetentionTask(t *testing.T) {
	t.Run("deletes traces past the retention period", func(t *testing.T) {
		projectID := uuid.New()
		traces := new(MockTraceCleaner)
		traces.On("DeleteOlderThan", mock.Anything, projectID, 90).Return(int64(7), nil)

		w := newTestCleanupWorker(traces, nil, nil)
		task, err := NewProjectRetentionTask(&ProjectRetentionPayload{
			ProjectID:     projectID,
			RetentionDays: 90,
		})
		require.NoError(t, err)

		require.NoError(t, w.ProcessProjectRetentionTask(context.Background(), task))
		traces.AssertExpectations(t)
	})

	t.Run("rejects a non-positive retention period", func(t *testing.T) {
		traces := new(MockTraceCleaner)
		w := newTestCleanupWorker(traces, nil, nil)

		payload, err := json.Marshal(&ProjectRetentionPayload{ProjectID: uuid.New()})
		require.NoError(t, err)
		task := asynq.NewTask(TypeProjectRetention, payload)

		require.Error(t, w.ProcessProjectRetentionTask(context.Background(), task))
		traces.AssertNotCalled(t, "DeleteOlderThan", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCleanupWorker_ProcessOrphanSweepTask(t *testing.T) {
	t.Run("deletes orphan spans", func(t *testing.T) {
		traces := new(MockTraceCleaner)
		traces.On("DeleteOrphanSpans", mock.Anything).Return(int64(3), nil)

		w := newTestCleanupWorker(traces, nil, nil)
		task, err := NewOrphanSweepTask(&OrphanSweepPayload{})
		require.NoError(t, err)

		require.NoError(t, w.ProcessOrphanSweepTask(context.Background(), task))
		traces.AssertExpectations(t)
		traces.AssertNotCalled(t, "CountOrphanSpans", mock.Anything)
	})

	t.Run("dry run only counts", func(t *testing.T) {
		traces := new(MockTraceCleaner)
		traces.On("CountOrphanSpans", mock.Anything).Return(int64(12), nil)

		w := newTestCleanupWorker(traces, nil, nil)
		task, err := NewOrphanSweepTask(&OrphanSweepPayload{DryRun: true})
		require.NoError(t, err)

		require.NoError(t, w.ProcessOrphanSweepTask(context.Background(), task))
		traces.AssertNotCalled(t, "DeleteOrphanSpans", mock.Anything)
	})
}
