// Package convstore persists conversations and manages their memory
// lifecycle: bounded windows, rolling summaries and pruning.
package convstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solacrm/backend/internal/llm"
	"github.com/solacrm/backend/internal/model"
	"github.com/solacrm/backend/pkg/logger"
	"github.com/solacrm/backend/pkg/metrics"
)

// Settings bound conversation memory. Validated at startup: KeepMessages <
// SummarizeThreshold < Window.
type Settings struct {
	Window             int
	SummarizeThreshold int
	KeepMessages       int
}

// DefaultSettings returns the production memory bounds.
func DefaultSettings() Settings {
	return Settings{Window: 40, SummarizeThreshold: 30, KeepMessages: 25}
}

// Store owns conversation and message rows. Append and summarize for the same
// conversation are serialized through a keyed mutex, so concurrent turns
// cannot interleave a prune with an append.
type Store struct {
	db       *gorm.DB
	settings Settings
	log      *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(db *gorm.DB, settings Settings, log *logger.Logger) *Store {
	if settings.Window <= 0 {
		settings = DefaultSettings()
	}
	return &Store{
		db:       db,
		settings: settings,
		log:      log.WithComponent("convstore"),
		locks:    make(map[string]*sync.Mutex),
	}
}

// AutoMigrate creates the conversation tables. Tests and local development
// only; production schema changes ship as migrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Conversation{}, &model.Message{})
}

func (s *Store) lockFor(convID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[convID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[convID] = l
	}
	return l
}

// GetOrCreate finds the conversation for (tenant, owner, surface), creating
// it on first contact.
func (s *Store) GetOrCreate(ctx context.Context, tenantID, ownerID string, surface model.Surface) (*model.Conversation, error) {
	if tenantID == "" || ownerID == "" {
		return nil, fmt.Errorf("tenant id and owner id are required")
	}

	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND owner_id = ? AND surface = ?", tenantID, ownerID, surface).
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	conv = model.Conversation{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		OwnerID:       ownerID,
		Surface:       surface,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// Append writes one message and bumps the conversation's monotonic counter.
func (s *Store) Append(ctx context.Context, conv *model.Conversation, role model.Role, content string, functionCalls []byte) error {
	lock := s.lockFor(conv.ID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		TenantID:       conv.TenantID,
		Role:           role,
		Content:        content,
		FunctionCalls:  functionCalls,
		CreatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", conv.ID).
			Updates(map[string]any{
				"message_count":   gorm.Expr("message_count + 1"),
				"last_message_at": now,
				"updated_at":      now,
			}).Error
	})
	if err != nil {
		return err
	}

	conv.MessageCount++
	conv.LastMessageAt = now
	metrics.MessagesTotal.WithLabelValues(conv.TenantID, string(role)).Inc()
	return nil
}

// Window returns the current summary and the most recent messages in
// chronological order, never the unbounded history.
func (s *Store) Window(ctx context.Context, convID string) (string, []model.Message, error) {
	var conv model.Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", convID).Error; err != nil {
		return "", nil, err
	}

	var msgs []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at DESC").
		Limit(s.settings.Window).
		Find(&msgs).Error
	if err != nil {
		return "", nil, err
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return conv.Summary, msgs, nil
}

// Clear removes a conversation and its messages.
func (s *Store) Clear(ctx context.Context, tenantID, ownerID string, surface model.Surface) error {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND owner_id = ? AND surface = ?", tenantID, ownerID, surface).
		First(&conv).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	lock := s.lockFor(conv.ID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", conv.ID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Conversation{}, "id = ?", conv.ID).Error
	})
}

// SetPendingAction records the action awaiting confirmation.
func (s *Store) SetPendingAction(ctx context.Context, convID string, pending *model.PendingAction) error {
	var raw []byte
	if pending != nil {
		var err error
		raw, err = json.Marshal(pending)
		if err != nil {
			return err
		}
	}
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Updates(map[string]any{"pending_action": raw, "updated_at": time.Now().UTC()}).Error
}

// TakePendingAction returns the recorded pending action, if any, and clears
// it. Consuming is unconditional: a pending action survives exactly one turn.
func (s *Store) TakePendingAction(ctx context.Context, convID string) (*model.PendingAction, error) {
	var conv model.Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", convID).Error; err != nil {
		return nil, err
	}
	if len(conv.PendingAction) == 0 {
		return nil, nil
	}

	var pending model.PendingAction
	if err := json.Unmarshal(conv.PendingAction, &pending); err != nil {
		// A corrupt record is dropped rather than wedging the conversation.
		s.log.Warn("dropping unreadable pending action",
			zap.String("conversation_id", convID), zap.Error(err))
		pending = model.PendingAction{}
	}

	if err := s.SetPendingAction(ctx, convID, nil); err != nil {
		return nil, err
	}
	if pending.Type == "" {
		return nil, nil
	}
	return &pending, nil
}

// SummarizeIfNeeded compacts history once the message count passes the
// threshold: everything older than the keep tail is folded into a new summary
// (which absorbs the prior one) and then hard-deleted. Callers run this
// fire-and-forget after responding; failures are logged, never surfaced.
func (s *Store) SummarizeIfNeeded(ctx context.Context, convID string, client llm.Client, summaryModel string) {
	lock := s.lockFor(convID)
	lock.Lock()
	defer lock.Unlock()

	var conv model.Conversation
	if err := s.db.WithContext(ctx).First(&conv, "id = ?", convID).Error; err != nil {
		s.log.Warn("summarize: load conversation", zap.String("conversation_id", convID), zap.Error(err))
		return
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ?", convID).Count(&total).Error; err != nil {
		s.log.Warn("summarize: count messages", zap.String("conversation_id", convID), zap.Error(err))
		return
	}
	if int(total) <= s.settings.SummarizeThreshold {
		return
	}

	// Rows older than the keep tail, oldest first.
	var pruned []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at DESC").
		Offset(s.settings.KeepMessages).
		Find(&pruned).Error
	if err != nil || len(pruned) == 0 {
		if err != nil {
			s.log.Warn("summarize: load prunable", zap.String("conversation_id", convID), zap.Error(err))
		}
		return
	}
	sort.Slice(pruned, func(i, j int) bool { return pruned[i].CreatedAt.Before(pruned[j].CreatedAt) })

	summary, err := s.synthesize(ctx, client, summaryModel, conv.Summary, pruned)
	if err != nil {
		metrics.SummarizationsTotal.WithLabelValues("error").Inc()
		s.log.Warn("summarize: synthesis failed",
			zap.String("conversation_id", convID), zap.Error(err))
		return
	}

	ids := make([]string, len(pruned))
	for i, m := range pruned {
		ids[i] = m.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Conversation{}).
			Where("id = ?", convID).
			Updates(map[string]any{"summary": summary, "updated_at": time.Now().UTC()}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&model.Message{}).Error
	})
	if err != nil {
		metrics.SummarizationsTotal.WithLabelValues("error").Inc()
		s.log.Warn("summarize: prune failed", zap.String("conversation_id", convID), zap.Error(err))
		return
	}

	metrics.SummarizationsTotal.WithLabelValues("ok").Inc()
	s.log.Info("conversation summarized",
		zap.String("conversation_id", convID),
		zap.Int("pruned", len(pruned)))
}

const summarizeInstruction = `Summarize the following CRM conversation history concisely in third person. Preserve names, contact details, dates, amounts, commitments and open questions. If a previous summary is given, fold its content into the new summary; the messages it covers are being deleted.`

func (s *Store) synthesize(ctx context.Context, client llm.Client, summaryModel, prior string, msgs []model.Message) (string, error) {
	if client == nil {
		return "", fmt.Errorf("no llm client for summarization")
	}

	var b strings.Builder
	if prior != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(prior)
		b.WriteString("\n\n")
	}
	b.WriteString("Messages:\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	resp, err := client.Complete(ctx, &llm.CompletionRequest{
		Model: summaryModel,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: summarizeInstruction},
			{Role: llm.RoleUser, Content: b.String()},
		},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", fmt.Errorf("empty summary returned")
	}
	return summary, nil
}
