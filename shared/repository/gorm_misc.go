package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agentdesk-backend/shared/database/models"
)

type gormSettings struct {
	db *gorm.DB
}

func (r *gormSettings) Get(ctx context.Context, userID uuid.UUID) (*models.Setting, error) {
	var setting models.Setting
	if err := r.db.WithContext(ctx).First(&setting, "user_id = ?", userID).Error; err != nil {
		return nil, translate("get settings", err)
	}
	return &setting, nil
}

// Save upserts on user_id so concurrent first reads cannot create two rows.
func (r *gormSettings) Save(ctx context.Context, setting *models.Setting) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"preferred_agent_id", "language", "theme",
			"notifications_enabled", "vibration_enabled", "updated_at",
		}),
	}).Create(setting).Error
	return translate("save settings", err)
}

type gormChat struct {
	db *gorm.DB
}

func (r *gormChat) Create(ctx context.Context, msg *models.ChatMessage) error {
	return translate("create chat message", r.db.WithContext(ctx).Create(msg).Error)
}

func (r *gormChat) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return translate("update message status", r.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("id = ?", id).Update("status", status).Error)
}

func (r *gormChat) History(ctx context.Context, userID, conversationID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var messages []models.ChatMessage
	if err := q.Find(&messages).Error; err != nil {
		return nil, translate("chat history", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *gormChat) Conversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	var summaries []models.ConversationSummary
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (m.conversation_id)
			m.conversation_id,
			m.agent_id,
			m.content AS last_message,
			m.role AS last_role,
			COUNT(*) OVER (PARTITION BY m.conversation_id) AS message_count,
			m.created_at AS updated_at
		FROM chat_messages m
		WHERE m.user_id = ?
		ORDER BY m.conversation_id, m.created_at DESC`, userID).
		Scan(&summaries).Error
	if err != nil {
		return nil, translate("list conversations", err)
	}
	sortSummaries(summaries)
	return summaries, nil
}

func (r *gormChat) DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Delete(&models.ChatMessage{})
	return res.RowsAffected, translate("delete conversation", res.Error)
}

type gormLoginAttempts struct {
	db *gorm.DB
}

func (r *gormLoginAttempts) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	return translate("record login attempt", r.db.WithContext(ctx).Create(attempt).Error)
}

func (r *gormLoginAttempts) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.LoginAttempt, error) {
	var attempts []models.LoginAttempt
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&attempts).Error; err != nil {
		return nil, translate("list login attempts", err)
	}
	return attempts, nil
}
