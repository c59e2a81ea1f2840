package chat

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"realtime_chat_server/internal/dao/mysql/repository"
	"realtime_chat_server/internal/dto/request"
	"realtime_chat_server/internal/dto/respond"
	"realtime_chat_server/internal/model"
	"realtime_chat_server/pkg/constants"
	"realtime_chat_server/pkg/errorx"
	"realtime_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

// validateContent 校验消息正文，allowEmpty 为 true 时允许只发附件
func (s *Service) validateContent(content string, allowEmpty bool) error {
	if !allowEmpty && strings.TrimSpace(content) == "" {
		return errorx.Validation("消息内容不能为空")
	}
	if utf8.RuneCountInString(content) > s.opts.MaxContentLength {
		return errorx.Validation("消息内容不能超过 %d 个字符", s.opts.MaxContentLength)
	}
	return nil
}

// checkRate 单用户发送限流，限流组件故障时放行
func (s *Service) checkRate(ctx context.Context, senderId string) error {
	if s.opts.Limiter == nil || s.opts.MessageRateLimit <= 0 {
		return nil
	}
	ok, err := s.opts.Limiter.Allow(ctx, constants.MessageRateKey(senderId), s.opts.MessageRateLimit, s.opts.MessageRateWindow)
	if err != nil {
		zap.L().Warn("message rate limit unavailable", zap.String("user_id", senderId), zap.Error(err))
		return nil
	}
	if !ok {
		return errorx.ErrTooManyReq
	}
	return nil
}

// SendMessage 发送消息
// 消息、附件绑定、暂存附件回收和 lastMessageAt 更新在同一事务中完成，
// 提交后推送 chat:message:new 到会话频道，并给其他成员的个人频道发 chat:notification
func (s *Service) SendMessage(ctx context.Context, senderId, senderName string, req request.SendMessageRequest) (*respond.MessageRespond, error) {
	attachmentIds := dedup(req.AttachmentIds, "")
	if err := s.validateContent(req.Content, len(attachmentIds) > 0); err != nil {
		return nil, err
	}
	if _, err := s.guard.RequireAccess(ctx, senderId, req.ConversationId); err != nil {
		return nil, err
	}
	if err := s.checkRate(ctx, senderId); err != nil {
		return nil, err
	}

	var replyTo *model.Message
	if req.ReplyToId != "" {
		target, err := s.repos.Message.FindByUuid(ctx, req.ReplyToId)
		if err != nil {
			return nil, err
		}
		if target.ConversationId != req.ConversationId {
			return nil, errorx.Validation("被回复的消息不属于当前会话")
		}
		if target.IsDeleted {
			return nil, errorx.Newf(errorx.CodeNotFound, "被回复的消息已删除")
		}
		replyTo = target
	}

	msgType := req.MessageType
	if msgType == "" {
		msgType = model.MessageText
		if len(attachmentIds) > 0 {
			msgType = model.MessageFile
		}
	}

	now := s.clock()
	msg := &model.Message{
		Uuid:           snowflake.NewID("M"),
		ConversationId: req.ConversationId,
		SenderId:       senderId,
		SenderName:     senderName,
		Content:        req.Content,
		MessageType:    msgType,
		CreatedAt:      now,
	}
	if replyTo != nil {
		msg.ReplyToId = nullString(replyTo.Uuid)
	}

	var bound []model.Attachment
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if len(attachmentIds) > 0 {
			staged, err := tx.Attachment.FindStagedByUuids(ctx, attachmentIds)
			if err != nil {
				return err
			}
			if len(staged) != len(attachmentIds) {
				return errorx.Newf(errorx.CodeNotFound, "附件不存在或已被使用")
			}
			for _, st := range staged {
				if st.UploaderId != senderId {
					return errorx.Newf(errorx.CodeForbidden, "只能发送自己上传的附件")
				}
				bound = append(bound, model.Attachment{
					Uuid:         st.Uuid,
					MessageId:    msg.Uuid,
					FileName:     st.FileName,
					FileUrl:      st.FileUrl,
					FileType:     st.FileType,
					FileSize:     st.FileSize,
					ThumbnailUrl: st.ThumbnailUrl,
					CreatedAt:    now,
				})
			}
			sort.Slice(bound, func(i, j int) bool { return bound[i].Uuid < bound[j].Uuid })
		}

		if err := tx.Message.Create(ctx, msg); err != nil {
			return err
		}
		if len(bound) > 0 {
			if err := tx.Attachment.CreateBatch(ctx, bound); err != nil {
				return err
			}
			n, err := tx.Attachment.DeleteStaged(ctx, attachmentIds)
			if err != nil {
				return err
			}
			// 并发发送抢占了同一个附件
			if n != int64(len(attachmentIds)) {
				return errorx.Newf(errorx.CodeNotFound, "附件不存在或已被使用")
			}
		}
		return tx.Conversation.TouchLastMessageAt(ctx, msg.ConversationId, now)
	})
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeDBError {
			zap.L().Error("send message failed",
				zap.String("conversation_id", req.ConversationId),
				zap.String("sender_id", senderId),
				zap.Error(err))
		}
		return nil, err
	}

	out := toMessageRespond(msg, bound, replyTo)
	s.publish(ctx, constants.ConversationGroup(msg.ConversationId), constants.EVENT_MESSAGE_NEW, &out, "")
	s.notifyMembers(ctx, msg.ConversationId, senderId, &out)
	return &out, nil
}

// notifyMembers 给其他激活成员的个人频道推送新消息通知
func (s *Service) notifyMembers(ctx context.Context, conversationId, senderId string, msg *respond.MessageRespond) {
	participants, err := s.repos.Participant.FindActiveByConversation(ctx, conversationId)
	if err != nil {
		zap.L().Error("load participants for notification failed",
			zap.String("conversation_id", conversationId), zap.Error(err))
		return
	}
	notification := &respond.NotificationRespond{
		Type:           constants.NOTIFY_NEW_MESSAGE,
		ConversationId: conversationId,
		Message:        msg,
	}
	for _, p := range participants {
		if p.UserId == senderId {
			continue
		}
		s.publish(ctx, constants.UserGroup(p.UserId), constants.EVENT_NOTIFICATION, notification, "")
	}
}

// GetMessages 拉取历史消息，返回按时间正序
// 开启拉取即已读时，把调用者的已读位置推进到当前时间
func (s *Service) GetMessages(ctx context.Context, userId string, req request.GetMessagesRequest) ([]respond.MessageRespond, error) {
	if _, err := s.guard.RequireAccess(ctx, userId, req.ConversationId); err != nil {
		return nil, err
	}

	var cursor *model.Message
	if req.Before != "" {
		c, err := s.repos.Message.FindByUuid(ctx, req.Before)
		if err != nil {
			return nil, err
		}
		if c.ConversationId != req.ConversationId {
			return nil, errorx.Validation("游标消息不属于当前会话")
		}
		cursor = c
	}

	limit := pageSize(req.Limit, s.opts.DefaultPageSize, s.opts.MaxPageSize)
	page, err := s.repos.Message.FindPage(ctx, req.ConversationId, cursor, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}

	out, err := s.hydrate(ctx, page)
	if err != nil {
		return nil, err
	}

	if s.opts.ReadOnFetch {
		if err := s.repos.Participant.AdvanceLastRead(ctx, req.ConversationId, userId, s.clock()); err != nil {
			zap.L().Error("advance last read failed",
				zap.String("conversation_id", req.ConversationId),
				zap.String("user_id", userId),
				zap.Error(err))
			return nil, err
		}
	}
	return out, nil
}

// loadOwnMessage 依次检查：消息存在、调用者仍是会话成员、调用者是发送者
func (s *Service) loadOwnMessage(ctx context.Context, userId, messageId string) (*model.Message, error) {
	msg, err := s.repos.Message.FindByUuid(ctx, messageId)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, errorx.Newf(errorx.CodeNotFound, "消息 %s 不存在", messageId)
	}
	if _, err := s.guard.RequireAccess(ctx, userId, msg.ConversationId); err != nil {
		return nil, err
	}
	if msg.SenderId != userId {
		return nil, errorx.ErrForbidden
	}
	return msg, nil
}

// EditMessage 编辑自己发送的消息，只修改内容，回复关系不变
func (s *Service) EditMessage(ctx context.Context, userId string, req request.EditMessageRequest) (*respond.MessageRespond, error) {
	if err := s.validateContent(req.Content, false); err != nil {
		return nil, err
	}
	msg, err := s.loadOwnMessage(ctx, userId, req.MessageId)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if err := s.repos.Message.UpdateContent(ctx, msg.Uuid, req.Content, now); err != nil {
		return nil, err
	}
	msg.Content = req.Content
	msg.IsEdited = true
	msg.EditedAt = nullTime(now)

	hydrated, err := s.hydrate(ctx, []model.Message{*msg})
	if err != nil {
		return nil, err
	}
	out := hydrated[0]
	s.publish(ctx, constants.ConversationGroup(msg.ConversationId), constants.EVENT_MESSAGE_EDITED, &out, "")
	return &out, nil
}

// DeleteMessage 软删除自己发送的消息
func (s *Service) DeleteMessage(ctx context.Context, userId, messageId string) (*respond.MessageDeletedRespond, error) {
	msg, err := s.loadOwnMessage(ctx, userId, messageId)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Message.SoftDelete(ctx, msg.Uuid, s.clock()); err != nil {
		return nil, err
	}
	out := &respond.MessageDeletedRespond{MessageId: msg.Uuid, ConversationId: msg.ConversationId}
	s.publish(ctx, constants.ConversationGroup(msg.ConversationId), constants.EVENT_MESSAGE_DELETED, out, "")
	return out, nil
}

// MarkRead 批量标记已读，重复标记无副作用
// 已读位置推进到被标记消息中最新的一条，不会后退
func (s *Service) MarkRead(ctx context.Context, userId string, req request.MarkReadRequest) (*respond.ReadReceiptRespond, error) {
	if _, err := s.guard.RequireAccess(ctx, userId, req.ConversationId); err != nil {
		return nil, err
	}
	ids := dedup(req.MessageIds, "")
	if len(ids) == 0 {
		return nil, errorx.Validation("消息列表不能为空")
	}

	msgs, err := s.repos.Message.FindByUuids(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(msgs) != len(ids) {
		return nil, errorx.Newf(errorx.CodeNotFound, "部分消息不存在")
	}
	newest := msgs[0].CreatedAt
	for _, m := range msgs {
		if m.ConversationId != req.ConversationId {
			return nil, errorx.Validation("消息 %s 不属于当前会话", m.Uuid)
		}
		if m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}

	now := s.clock()
	receipts := make([]model.ReadReceipt, 0, len(ids))
	for _, id := range ids {
		receipts = append(receipts, model.ReadReceipt{MessageId: id, UserId: userId, ReadAt: now})
	}
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.ReadReceipt.CreateIgnoreConflict(ctx, receipts); err != nil {
			return err
		}
		return tx.Participant.AdvanceLastRead(ctx, req.ConversationId, userId, newest)
	})
	if err != nil {
		zap.L().Error("mark read failed",
			zap.String("conversation_id", req.ConversationId),
			zap.String("user_id", userId),
			zap.Error(err))
		return nil, err
	}

	out := &respond.ReadReceiptRespond{
		ConversationId: req.ConversationId,
		UserId:         userId,
		MessageIds:     ids,
		ReadAt:         now,
	}
	s.publish(ctx, constants.ConversationGroup(req.ConversationId), constants.EVENT_READ_RECEIPT, out, "")
	return out, nil
}

// SearchMessages 在用户参与的会话中做不区分大小写的子串搜索
func (s *Service) SearchMessages(ctx context.Context, userId string, req request.SearchMessagesRequest) ([]respond.MessageRespond, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errorx.Validation("搜索关键词不能为空")
	}
	limit := pageSize(req.Limit, s.opts.MaxSearchResults, s.opts.MaxSearchResults)
	msgs, err := s.repos.Message.Search(ctx, userId, query, limit)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, msgs)
}

// UnreadCount 各激活会话的未读数及总和
func (s *Service) UnreadCount(ctx context.Context, userId string) (*respond.UnreadCountRespond, error) {
	counts, err := s.repos.Message.CountUnread(ctx, userId)
	if err != nil {
		return nil, err
	}
	out := &respond.UnreadCountRespond{
		Conversations: make([]respond.ConversationUnreadRespond, 0, len(counts)),
	}
	for _, c := range counts {
		out.Total += c.Unread
		out.Conversations = append(out.Conversations, respond.ConversationUnreadRespond{
			ConversationId: c.ConversationId,
			Unread:         c.Unread,
		})
	}
	sort.Slice(out.Conversations, func(i, j int) bool {
		return out.Conversations[i].ConversationId < out.Conversations[j].ConversationId
	})
	return out, nil
}
