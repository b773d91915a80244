// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/device"
	"github.com/xkilldash9x/screenpilot/internal/llmclient"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Agent() config.AgentConfig {
	args := m.Called()
	return args.Get(0).(config.AgentConfig)
}

func (m *MockConfig) Decision() config.DecisionConfig {
	args := m.Called()
	return args.Get(0).(config.DecisionConfig)
}

func (m *MockConfig) Executor() config.ExecutorConfig {
	args := m.Called()
	return args.Get(0).(config.ExecutorConfig)
}

func (m *MockConfig) Device() config.DeviceConfig {
	args := m.Called()
	return args.Get(0).(config.DeviceConfig)
}

func (m *MockConfig) Credentials() config.CredentialsConfig {
	args := m.Called()
	return args.Get(0).(config.CredentialsConfig)
}

// --- Setters ---

func (m *MockConfig) SetAgentMaxTurns(n int)         { m.Called(n) }
func (m *MockConfig) SetDeviceBackend(b string)      { m.Called(b) }
func (m *MockConfig) SetADBSerial(s string)          { m.Called(s) }
func (m *MockConfig) SetDecisionProtocol(p string)   { m.Called(p) }
func (m *MockConfig) SetDecisionTransport(tr string) { m.Called(tr) }

// -- Device Mock --

// MockDevice mocks device.Capability.
type MockDevice struct {
	mock.Mock
}

var _ device.Capability = (*MockDevice)(nil)

func (m *MockDevice) CaptureScreen(ctx context.Context) (*device.Screenshot, error) {
	args := m.Called(ctx)
	if shot := args.Get(0); shot != nil {
		return shot.(*device.Screenshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDevice) DispatchGesture(ctx context.Context, g device.Gesture) error {
	return m.Called(ctx, g).Error(0)
}

func (m *MockDevice) PerformGlobalAction(ctx context.Context, a device.GlobalAction) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockDevice) FocusedEditable(ctx context.Context) (*device.Target, error) {
	args := m.Called(ctx)
	if target := args.Get(0); target != nil {
		return target.(*device.Target), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDevice) SetText(ctx context.Context, target device.Target, text string) error {
	return m.Called(ctx, target, text).Error(0)
}

func (m *MockDevice) OpenURL(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockDevice) ScreenDimensions() (int, int) {
	args := m.Called()
	return args.Int(0), args.Int(1)
}

// -- Transport and Credential Mocks --

// MockTransport mocks llmclient.Transport.
type MockTransport struct {
	mock.Mock
}

var _ llmclient.Transport = (*MockTransport)(nil)

func (m *MockTransport) Generate(ctx context.Context, apiKey string, req *llmclient.GenerateRequest) (*llmclient.GenerateResponse, error) {
	args := m.Called(ctx, apiKey, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*llmclient.GenerateResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockCredentialStore mocks credentials.Store.
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) Credential(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
