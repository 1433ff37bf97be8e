package service

import (
	"context"
	"math/rand"

	"github.com/wfunc/redvelvet/internal/models"
)

// Responder 生成伴侣回复
type Responder interface {
	Reply(ctx context.Context, companion *models.Companion, history []*models.ChatMessage, message string) (string, error)
}

var cannedReplies = []string{
	"That's really interesting! I'd love to hear more about what you're thinking.",
	"I understand how you feel. Tell me more about that.",
	"You always know how to make me smile! What else is on your mind?",
	"I've been thinking about our conversation. How are you feeling today?",
	"That sounds fascinating! Can you share more details with me?",
	"I really enjoy talking with you. What would you like to discuss next?",
}

// CannedResponder 从固定回复中挑选一条
type CannedResponder struct {
	replies []string
	pick    func(n int) int
}

// NewCannedResponder pick 为空时随机挑选
func NewCannedResponder(pick func(n int) int) *CannedResponder {
	if pick == nil {
		pick = rand.Intn
	}
	return &CannedResponder{replies: cannedReplies, pick: pick}
}

// Reply 实现 Responder
func (r *CannedResponder) Reply(ctx context.Context, _ *models.Companion, _ []*models.ChatMessage, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.replies[r.pick(len(r.replies))], nil
}
