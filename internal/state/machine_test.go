package state

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) GetState(ctx context.Context, userID int64) (*UserState, error) {
	args := m.Called(ctx, userID)
	state, _ := args.Get(0).(*UserState)
	return state, args.Error(1)
}

func (m *mockStorage) SetState(ctx context.Context, userID int64, state *UserState) error {
	args := m.Called(ctx, userID, state)
	return args.Error(0)
}

func (m *mockStorage) ClearState(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func TestStateMachine_TransitionTo(t *testing.T) {
	ctx := context.Background()
	userID := int64(42)
	log := testLogger()

	testCases := []struct {
		name        string
		setupMocks  func(ms *mockStorage)
		newState    State
		expectedErr error
	}{
		{
			name: "start registration",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return(&UserState{CurrentState: StateIdle}, nil).Once()
				ms.On("SetState", mock.Anything, userID, mock.MatchedBy(func(state *UserState) bool {
					return state.CurrentState == StateAwaitingName
				})).Return(nil).Once()
			},
			newState:    StateAwaitingName,
			expectedErr: nil,
		},
		{
			name: "skipping the name step is rejected",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return(&UserState{CurrentState: StateIdle}, nil).Once()
			},
			newState:    StateAwaitingTimezone,
			expectedErr: ErrInvalidTransition,
		},
		{
			name: "user with no stored state starts from idle",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return((*UserState)(nil), ErrStateNotFound).Once()
				ms.On("SetState", mock.Anything, userID, mock.MatchedBy(func(state *UserState) bool {
					return state.CurrentState == StateAwaitingName
				})).Return(nil).Once()
			},
			newState:    StateAwaitingName,
			expectedErr: nil,
		},
		{
			name: "cancel mid-wizard",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return(&UserState{CurrentState: StateAwaitingTimezone}, nil).Once()
				ms.On("SetState", mock.Anything, userID, mock.MatchedBy(func(state *UserState) bool {
					return state.CurrentState == StateIdle
				})).Return(nil).Once()
			},
			newState:    StateIdle,
			expectedErr: nil,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ms := &mockStorage{}
			tc.setupMocks(ms)

			fsm := NewStateMachine(ms, log, nil)
			err := fsm.TransitionTo(ctx, userID, tc.newState)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
			}

			ms.AssertExpectations(t)
		})
	}
}

func TestStateMachine_LockContention(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	userID := int64(7)

	// Simulate another in-flight operation holding the lock.
	require.NoError(t, client.Set(ctx, fmt.Sprintf(userLockKeyPattern, userID), 1, lockTTL).Err())

	ms := &mockStorage{}
	fsm := NewStateMachine(ms, testLogger(), client)

	err := fsm.SetState(ctx, userID, StateAwaitingName, nil)
	assert.ErrorIs(t, err, ErrStateLocked)
	ms.AssertExpectations(t)
}

func TestStateMachine_LockReleasedAfterUse(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	userID := int64(9)

	ms := &mockStorage{}
	ms.On("SetState", mock.Anything, userID, mock.Anything).Return(nil).Twice()

	fsm := NewStateMachine(ms, testLogger(), client)

	require.NoError(t, fsm.SetState(ctx, userID, StateAwaitingName, nil))
	require.NoError(t, fsm.SetState(ctx, userID, StateAwaitingTimezone, map[string]interface{}{ContextKeyName: "Aether"}))
	ms.AssertExpectations(t)
}
