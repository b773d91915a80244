package mocks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/screenpilot/internal/device"
	"github.com/xkilldash9x/screenpilot/internal/llmclient"
	"github.com/xkilldash9x/screenpilot/internal/mocks"
)

func TestMockDevice_NilReturns(t *testing.T) {
	dev := new(mocks.MockDevice)
	dev.On("CaptureScreen", mock.Anything).Return(nil, device.ErrNoDevice)
	dev.On("FocusedEditable", mock.Anything).Return(nil, nil)

	shot, err := dev.CaptureScreen(context.Background())
	assert.Nil(t, shot)
	assert.ErrorIs(t, err, device.ErrNoDevice)

	target, err := dev.FocusedEditable(context.Background())
	assert.Nil(t, target)
	assert.NoError(t, err)
	dev.AssertExpectations(t)
}

func TestMockTransport_TypedReturn(t *testing.T) {
	tr := new(mocks.MockTransport)
	resp := &llmclient.GenerateResponse{Candidates: []llmclient.Candidate{{}}}
	tr.On("Generate", mock.Anything, "k", mock.Anything).Return(resp, nil).Once()
	tr.On("Generate", mock.Anything, "k", mock.Anything).Return(nil, llmclient.ErrTransport).Once()

	got, err := tr.Generate(context.Background(), "k", &llmclient.GenerateRequest{})
	require.NoError(t, err)
	assert.Same(t, resp, got)

	got, err = tr.Generate(context.Background(), "k", &llmclient.GenerateRequest{})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, llmclient.ErrTransport)
	tr.AssertExpectations(t)
}

func TestMockCredentialStore(t *testing.T) {
	store := new(mocks.MockCredentialStore)
	store.On("Credential", mock.Anything).Return("", errors.New("locked"))
	_, err := store.Credential(context.Background())
	assert.EqualError(t, err, "locked")
}
