// Package sendertest provides a testify mock of sender.Sender.
package sendertest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/sender"
)

// Mock records calls to Send. Options are not passed to the expectation.
type Mock struct {
	mock.Mock
}

var _ sender.Sender = (*Mock)(nil)

func (m *Mock) Send(ctx context.Context, address string, n notification.Notification, _ ...sender.SendOption) (sender.Result, error) {
	args := m.Called(ctx, address, n)
	return args.Get(0).(sender.Result), args.Error(1)
}
