package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	idType, id, msgType, content string
	err                          error
}

func (r *recordingSender) send(_ context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	r.idType, r.id, r.msgType, r.content = receiveIDType, receiveID, msgType, content
	return "om_1", r.err
}

func TestMessenger_Notify(t *testing.T) {
	sender := &recordingSender{}
	m := &Messenger{sender: sender, chatID: "oc_123", logger: zap.NewNop()}

	err := m.Notify(context.Background(), port.Notification{Title: "报销单已打款", Body: `单号 "RB20240501001"`})
	require.NoError(t, err)

	assert.Equal(t, "chat_id", sender.idType)
	assert.Equal(t, "oc_123", sender.id)
	assert.Equal(t, "text", sender.msgType)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(sender.content), &body))
	assert.Equal(t, "报销单已打款\n单号 \"RB20240501001\"", body["text"])
}

func TestMessenger_NotifyErrors(t *testing.T) {
	m := &Messenger{sender: &recordingSender{}, logger: zap.NewNop()}
	assert.Error(t, m.Notify(context.Background(), port.Notification{Body: "x"}))

	m.chatID = "oc_1"
	assert.Error(t, m.Notify(context.Background(), port.Notification{}))

	m.sender = &recordingSender{err: errors.New("rate limited")}
	assert.ErrorContains(t, m.Notify(context.Background(), port.Notification{Body: "x"}), "rate limited")
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{AppID: "a", AppSecret: "b"}.Enabled())
	assert.True(t, Config{AppID: "a", AppSecret: "b", ChatID: "c"}.Enabled())
}
