package mocks

import (
	"context"

	"github.com/go-ble/ble"
	goble "github.com/srg/wstation/internal/device/go-ble"
	"github.com/stretchr/testify/mock"
)

// MockClient is a mock goble.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	if v := args.Get(0); v != nil {
		return v.(*ble.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	args := m.Called(c)
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	return m.Called(c, value, noRsp).Error(0)
}

func (m *MockClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	return m.Called(c, ind, h).Error(0)
}

func (m *MockClient) Unsubscribe(c *ble.Characteristic, ind bool) error {
	return m.Called(c, ind).Error(0)
}

func (m *MockClient) CancelConnection() error {
	return m.Called().Error(0)
}

// MockDisconnectingClient is a MockClient that also reports link loss.
type MockDisconnectingClient struct {
	MockClient
	Lost chan struct{}
}

func NewMockDisconnectingClient() *MockDisconnectingClient {
	return &MockDisconnectingClient{Lost: make(chan struct{})}
}

func (m *MockDisconnectingClient) Disconnected() <-chan struct{} {
	return m.Lost
}

// MockAdapter is a mock goble.Adapter
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	return m.Called(ctx, allowDup, h).Error(0)
}

func (m *MockAdapter) Dial(ctx context.Context, addr ble.Addr) (goble.Client, error) {
	args := m.Called(ctx, addr)
	if v := args.Get(0); v != nil {
		return v.(goble.Client), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) Stop() error {
	return m.Called().Error(0)
}

var (
	_ goble.Client  = (*MockClient)(nil)
	_ goble.Adapter = (*MockAdapter)(nil)
)
