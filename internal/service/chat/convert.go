package chat

import (
	"context"
	"database/sql"
	"time"
	"unicode/utf8"

	"realtime_chat_server/internal/dto/respond"
	"realtime_chat_server/internal/model"
)

// 回复预览最多保留的字符数
const replyPreviewRunes = 100

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func toAttachmentRespond(a model.Attachment) respond.AttachmentRespond {
	return respond.AttachmentRespond{
		Id:           a.Uuid,
		FileName:     a.FileName,
		FileUrl:      a.FileUrl,
		FileType:     a.FileType,
		FileSize:     a.FileSize,
		ThumbnailUrl: a.ThumbnailUrl,
	}
}

func stagedToRespond(a *model.StagedAttachment) *respond.AttachmentRespond {
	return &respond.AttachmentRespond{
		Id:           a.Uuid,
		FileName:     a.FileName,
		FileUrl:      a.FileUrl,
		FileType:     a.FileType,
		FileSize:     a.FileSize,
		ThumbnailUrl: a.ThumbnailUrl,
	}
}

func toReplyPreview(m *model.Message) *respond.ReplyPreviewRespond {
	preview := &respond.ReplyPreviewRespond{
		Id:        m.Uuid,
		Sender:    respond.SenderRespond{Id: m.SenderId, Name: m.SenderName},
		IsDeleted: m.IsDeleted,
	}
	if !m.IsDeleted {
		preview.Content = truncateRunes(m.Content, replyPreviewRunes)
	}
	return preview
}

func toMessageRespond(m *model.Message, attachments []model.Attachment, replyTo *model.Message) respond.MessageRespond {
	out := respond.MessageRespond{
		Id:             m.Uuid,
		ConversationId: m.ConversationId,
		Sender:         respond.SenderRespond{Id: m.SenderId, Name: m.SenderName},
		Content:        m.Content,
		MessageType:    m.MessageType,
		Attachments:    make([]respond.AttachmentRespond, 0, len(attachments)),
		IsEdited:       m.IsEdited,
		EditedAt:       timePtr(m.EditedAt),
		CreatedAt:      m.CreatedAt.UTC(),
	}
	for _, a := range attachments {
		out.Attachments = append(out.Attachments, toAttachmentRespond(a))
	}
	if replyTo != nil {
		out.ReplyTo = toReplyPreview(replyTo)
	}
	return out
}

func toConversationRespond(c *model.Conversation) respond.ConversationRespond {
	return respond.ConversationRespond{
		Id:            c.Uuid,
		Type:          c.Type,
		Name:          c.Name,
		Description:   c.Description,
		CreatorId:     c.CreatorId,
		IsActive:      c.IsActive,
		LastMessageAt: timePtr(c.LastMessageAt),
		CreatedAt:     c.CreatedAt.UTC(),
	}
}

func toParticipantRespond(p model.ConversationParticipant) respond.ParticipantRespond {
	return respond.ParticipantRespond{
		UserId:     p.UserId,
		Role:       p.Role,
		JoinedAt:   p.JoinedAt.UTC(),
		LastReadAt: timePtr(p.LastReadAt),
	}
}

// hydrate 批量补齐附件和回复预览，输出顺序与输入一致
func (s *Service) hydrate(ctx context.Context, msgs []model.Message) ([]respond.MessageRespond, error) {
	out := make([]respond.MessageRespond, 0, len(msgs))
	if len(msgs) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(msgs))
	var replyIds []string
	for _, m := range msgs {
		ids = append(ids, m.Uuid)
		if m.ReplyToId.Valid {
			replyIds = append(replyIds, m.ReplyToId.String)
		}
	}

	attachments, err := s.repos.Attachment.FindByMessageIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	byMessage := make(map[string][]model.Attachment, len(msgs))
	for _, a := range attachments {
		byMessage[a.MessageId] = append(byMessage[a.MessageId], a)
	}

	replies := make(map[string]*model.Message, len(replyIds))
	if len(replyIds) > 0 {
		found, err := s.repos.Message.FindByUuids(ctx, dedup(replyIds, ""))
		if err != nil {
			return nil, err
		}
		for i := range found {
			replies[found[i].Uuid] = &found[i]
		}
	}

	for i := range msgs {
		var reply *model.Message
		if msgs[i].ReplyToId.Valid {
			reply = replies[msgs[i].ReplyToId.String]
		}
		out = append(out, toMessageRespond(&msgs[i], byMessage[msgs[i].Uuid], reply))
	}
	return out, nil
}
