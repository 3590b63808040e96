package lark

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// messageSender delivers one raw im message
type messageSender interface {
	send(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

type imSender struct {
	client *SDKClient
}

func (s *imSender) send(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := s.client.client.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	return messageID, nil
}

// Messenger implements port.Notifier by posting text messages to a group chat
type Messenger struct {
	sender messageSender
	chatID string
	logger *zap.Logger
}

// NewMessenger creates a new Lark notifier
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		sender: &imSender{client: client},
		chatID: client.GetChatID(),
		logger: logger,
	}
}

// Notify sends the notification as a plain text message
func (m *Messenger) Notify(ctx context.Context, n port.Notification) error {
	if m.chatID == "" {
		return fmt.Errorf("chat id cannot be empty")
	}

	text := n.Body
	if n.Title != "" {
		text = n.Title + "\n" + n.Body
	}
	if text == "" {
		return fmt.Errorf("content cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	messageID, err := m.sender.send(ctx, "chat_id", m.chatID, "text", string(content))
	if err != nil {
		m.logger.Error("Failed to send notification", zap.String("chat_id", m.chatID), zap.Error(err))
		return err
	}

	m.logger.Info("Notification sent", zap.String("message_id", messageID), zap.String("title", n.Title))
	return nil
}
