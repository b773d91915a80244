package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/screenpilot/internal/action"
	"github.com/xkilldash9x/screenpilot/internal/decision"
	"github.com/xkilldash9x/screenpilot/internal/executor"
)

// mockDecider mocks the decision client.
type mockDecider struct {
	mock.Mock
}

var _ Decider = (*mockDecider)(nil)

func (m *mockDecider) Decide(ctx context.Context, req decision.Request) *action.Action {
	args := m.Called(ctx, req)
	if a := args.Get(0); a != nil {
		return a.(*action.Action)
	}
	return nil
}

// mockExecutor mocks the action executor.
type mockExecutor struct {
	mock.Mock
}

var _ ActionExecutor = (*mockExecutor)(nil)

func (m *mockExecutor) Execute(ctx context.Context, a action.Action) *executor.Result {
	args := m.Called(ctx, a)
	if r := args.Get(0); r != nil {
		return r.(*executor.Result)
	}
	return nil
}
