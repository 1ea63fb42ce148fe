// Package notify pushes best-effort digests of finished download batches to
// a Feishu chat. 通知失败只记日志，绝不影响工具调用结果。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/pkg/errors"

	logagent "github.com/httprunner/LogAgent"
)

// FeishuNotifier implements logagent.Notifier via the Feishu IM API.
type FeishuNotifier struct {
	client *lark.Client
	chatID string
}

func NewFeishuNotifier(appID, appSecret, chatID string) (*FeishuNotifier, error) {
	if strings.TrimSpace(appID) == "" || strings.TrimSpace(appSecret) == "" {
		return nil, errors.New("feishu app credentials are empty")
	}
	if strings.TrimSpace(chatID) == "" {
		return nil, errors.New("feishu chat id is empty")
	}
	return &FeishuNotifier{
		client: lark.NewClient(appID, appSecret),
		chatID: chatID,
	}, nil
}

// NotifyBatch posts a one-line text summary of the batch.
func (n *FeishuNotifier) NotifyBatch(ctx context.Context, device, date string, results []logagent.RetrievalResult) error {
	content, err := json.Marshal(map[string]string{"text": BatchSummary(device, date, results)})
	if err != nil {
		return errors.Wrap(err, "encode digest content")
	}
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(n.chatID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()
	resp, err := n.client.Im.Message.Create(ctx, req)
	if err != nil {
		return errors.Wrap(err, "send feishu message")
	}
	if !resp.Success() {
		return errors.Errorf("feishu message rejected: code=%d msg=%s", resp.Code, resp.Msg)
	}
	return nil
}

// BatchSummary renders the digest line, e.g.
// "日志拉取 西小口店 2024-01-15: client=success backend=skipped".
func BatchSummary(device, date string, results []logagent.RetrievalResult) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		parts = append(parts, fmt.Sprintf("%s=%s", result.LogType, result.Status))
	}
	if len(parts) == 0 {
		parts = append(parts, "no results")
	}
	return fmt.Sprintf("日志拉取 %s %s: %s", device, date, strings.Join(parts, " "))
}
