package chat

import (
	"context"
	"sort"
	"strings"
	"time"

	"realtime_chat_server/internal/dao/mysql/repository"
	"realtime_chat_server/internal/dto/request"
	"realtime_chat_server/internal/dto/respond"
	"realtime_chat_server/internal/model"
	"realtime_chat_server/pkg/constants"
	"realtime_chat_server/pkg/errorx"
	"realtime_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

// CreateDirect 创建或获取两人之间的单聊
// 同一对用户任意顺序、任意并发地调用都返回同一个会话：
// 进程内由 singleflight 合并，跨进程由 direct_key 唯一索引兜底，冲突后重新读取胜出者
func (s *Service) CreateDirect(ctx context.Context, userId, peerId string) (*respond.ConversationRespond, error) {
	if userId == "" || peerId == "" {
		return nil, errorx.Validation("单聊双方不能为空")
	}
	if userId == peerId {
		return nil, errorx.Validation("不能和自己创建单聊")
	}

	key := model.DirectKeyOf(userId, peerId)
	v, err, _ := s.direct.Do(key, func() (any, error) {
		return s.findOrCreateDirect(ctx, key, userId, peerId)
	})
	if err != nil {
		return nil, err
	}
	return s.conversationDetail(ctx, v.(*model.Conversation), userId)
}

func (s *Service) findOrCreateDirect(ctx context.Context, key, userId, peerId string) (*model.Conversation, error) {
	conv, err := s.repos.Conversation.FindActiveDirect(ctx, key)
	if err == nil {
		return conv, s.ensureMembers(ctx, conv.Uuid, userId, peerId)
	}
	if !errorx.IsNotFound(err) {
		return nil, err
	}

	now := s.clock()
	conv = &model.Conversation{
		Uuid:      snowflake.NewID("C"),
		Type:      model.ConversationDirect,
		CreatorId: userId,
		DirectKey: nullString(key),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Conversation.Create(ctx, conv); err != nil {
			return err
		}
		return tx.Participant.CreateBatch(ctx, []model.ConversationParticipant{
			newParticipant(conv.Uuid, userId, model.RoleMember, now),
			newParticipant(conv.Uuid, peerId, model.RoleMember, now),
		})
	})
	if err == nil {
		zap.L().Info("direct conversation created",
			zap.String("conversation_id", conv.Uuid),
			zap.String("user_id", userId),
			zap.String("peer_id", peerId))
		return conv, nil
	}
	if !repository.IsDuplicateKey(err) {
		zap.L().Error("create direct conversation failed", zap.String("direct_key", key), zap.Error(err))
		return nil, err
	}

	// 其他节点先创建成功
	winner, findErr := s.repos.Conversation.FindActiveDirect(ctx, key)
	if findErr != nil {
		return nil, findErr
	}
	return winner, s.ensureMembers(ctx, winner.Uuid, userId, peerId)
}

// ensureMembers 把已退出的一方重新加入单聊
func (s *Service) ensureMembers(ctx context.Context, conversationId string, userIds ...string) error {
	now := s.clock()
	for _, uid := range userIds {
		_, err := s.repos.Participant.FindActive(ctx, conversationId, uid)
		if err == nil {
			continue
		}
		if !errorx.IsNotFound(err) {
			return err
		}
		row := newParticipant(conversationId, uid, model.RoleMember, now)
		if err := s.repos.Participant.CreateBatch(ctx, []model.ConversationParticipant{row}); err != nil && !repository.IsDuplicateKey(err) {
			return err
		}
	}
	return nil
}

// CreateGroup 创建群聊，创建者为管理员，其余为普通成员
func (s *Service) CreateGroup(ctx context.Context, creatorId string, req request.CreateGroupRequest) (*respond.ConversationRespond, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errorx.Validation("群名称不能为空")
	}
	members := dedup(req.ParticipantIds, creatorId)
	if len(members) == 0 {
		return nil, errorx.Validation("群聊至少需要一名其他成员")
	}

	now := s.clock()
	conv := &model.Conversation{
		Uuid:        snowflake.NewID("C"),
		Type:        model.ConversationGroup,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatorId:   creatorId,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rows := make([]model.ConversationParticipant, 0, len(members)+1)
	rows = append(rows, newParticipant(conv.Uuid, creatorId, model.RoleAdmin, now))
	for _, uid := range members {
		rows = append(rows, newParticipant(conv.Uuid, uid, model.RoleMember, now))
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Conversation.Create(ctx, conv); err != nil {
			return err
		}
		return tx.Participant.CreateBatch(ctx, rows)
	})
	if err != nil {
		zap.L().Error("create group failed", zap.String("creator_id", creatorId), zap.Error(err))
		return nil, err
	}
	zap.L().Info("group conversation created",
		zap.String("conversation_id", conv.Uuid),
		zap.String("creator_id", creatorId),
		zap.Int("members", len(rows)))
	return s.conversationDetail(ctx, conv, creatorId)
}

// requireGroupAdmin 校验管理员身份后再确认是群聊
func (s *Service) requireGroupAdmin(ctx context.Context, requesterId, conversationId string) (*model.Conversation, error) {
	if _, err := s.guard.RequireAdmin(ctx, requesterId, conversationId); err != nil {
		return nil, err
	}
	conv, err := s.repos.Conversation.FindByUuid(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup() {
		return nil, errorx.Validation("单聊不支持该操作")
	}
	return conv, nil
}

// AddParticipants 管理员拉人入群，已在群中的用户忽略
func (s *Service) AddParticipants(ctx context.Context, requesterId string, req request.AddParticipantsRequest) (*respond.ConversationRespond, error) {
	conv, err := s.requireGroupAdmin(ctx, requesterId, req.ConversationId)
	if err != nil {
		return nil, err
	}

	active, err := s.repos.Participant.FindActiveByConversation(ctx, conv.Uuid)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]struct{}, len(active))
	for _, p := range active {
		existing[p.UserId] = struct{}{}
	}

	now := s.clock()
	var rows []model.ConversationParticipant
	for _, uid := range dedup(req.UserIds, "") {
		if _, ok := existing[uid]; ok {
			continue
		}
		rows = append(rows, newParticipant(conv.Uuid, uid, model.RoleMember, now))
	}

	if err := s.repos.Participant.CreateBatch(ctx, rows); err != nil {
		if !repository.IsDuplicateKey(err) {
			zap.L().Error("add participants failed", zap.String("conversation_id", conv.Uuid), zap.Error(err))
			return nil, err
		}
		// 并发加入导致部分冲突，逐条写入并跳过已存在的
		for _, row := range rows {
			if err := s.repos.Participant.CreateBatch(ctx, []model.ConversationParticipant{row}); err != nil && !repository.IsDuplicateKey(err) {
				return nil, err
			}
		}
	}
	return s.conversationDetail(ctx, conv, requesterId)
}

// RemoveParticipant 管理员移出成员，移出自己等同于退出
func (s *Service) RemoveParticipant(ctx context.Context, requesterId string, req request.RemoveParticipantRequest) error {
	conv, err := s.requireGroupAdmin(ctx, requesterId, req.ConversationId)
	if err != nil {
		return err
	}
	if req.UserId == requesterId {
		return s.Leave(ctx, conv.Uuid, requesterId)
	}

	n, err := s.repos.Participant.MarkLeft(ctx, conv.Uuid, req.UserId, s.clock())
	if err != nil {
		return err
	}
	if n == 0 {
		return errorx.Newf(errorx.CodeNotFound, "用户 %s 不在会话中", req.UserId)
	}
	s.evict(ctx, constants.ConversationGroup(conv.Uuid), req.UserId)
	return nil
}

// UpdateGroupInfo 修改群名称/描述
func (s *Service) UpdateGroupInfo(ctx context.Context, requesterId string, req request.UpdateGroupInfoRequest) (*respond.ConversationRespond, error) {
	conv, err := s.requireGroupAdmin(ctx, requesterId, req.ConversationId)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any, 3)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, errorx.Validation("群名称不能为空")
		}
		updates["name"] = name
		conv.Name = name
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		updates["description"] = desc
		conv.Description = desc
	}
	if len(updates) == 0 {
		return s.conversationDetail(ctx, conv, requesterId)
	}
	updates["updated_at"] = s.clock()
	if err := s.repos.Conversation.UpdateInfo(ctx, conv.Uuid, updates); err != nil {
		return nil, err
	}
	return s.conversationDetail(ctx, conv, requesterId)
}

// Leave 退出会话，重复退出不报错
// 最后一人退出时停用会话，群里最后一名管理员退出时把管理员交给加入最早的成员
func (s *Service) Leave(ctx context.Context, conversationId, userId string) error {
	conv, err := s.repos.Conversation.FindByUuid(ctx, conversationId)
	if err != nil {
		return err
	}

	left := false
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		// 先锁会话行，最后两人同时退出时第二个事务能看到第一个的结果
		if _, err := tx.Conversation.LockByUuid(ctx, conversationId); err != nil {
			return err
		}
		n, err := tx.Participant.MarkLeft(ctx, conversationId, userId, s.clock())
		if err != nil || n == 0 {
			return err
		}
		left = true

		remaining, err := tx.Participant.FindActiveByConversation(ctx, conversationId)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			return tx.Conversation.Deactivate(ctx, conversationId)
		}
		if !conv.IsGroup() {
			return nil
		}
		for _, p := range remaining {
			if p.Role == model.RoleAdmin {
				return nil
			}
		}
		return tx.Participant.UpdateRole(ctx, remaining[0].Id, model.RoleAdmin)
	})
	if err != nil {
		zap.L().Error("leave conversation failed",
			zap.String("conversation_id", conversationId),
			zap.String("user_id", userId),
			zap.Error(err))
		return err
	}
	if left {
		s.evict(ctx, constants.ConversationGroup(conversationId), userId)
	}
	return nil
}

// GetConversationById 会话详情，包含激活成员和当前用户的未读数
func (s *Service) GetConversationById(ctx context.Context, userId, conversationId string) (*respond.ConversationRespond, error) {
	if _, err := s.guard.RequireAccess(ctx, userId, conversationId); err != nil {
		return nil, err
	}
	conv, err := s.repos.Conversation.FindByUuid(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	return s.conversationDetail(ctx, conv, userId)
}

func (s *Service) conversationDetail(ctx context.Context, conv *model.Conversation, userId string) (*respond.ConversationRespond, error) {
	participants, err := s.repos.Participant.FindActiveByConversation(ctx, conv.Uuid)
	if err != nil {
		return nil, err
	}
	out := toConversationRespond(conv)
	out.Participants = make([]respond.ParticipantRespond, 0, len(participants))
	for _, p := range participants {
		out.Participants = append(out.Participants, toParticipantRespond(p))
	}

	counts, err := s.repos.Message.CountUnread(ctx, userId)
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		if c.ConversationId == conv.Uuid {
			out.Unread = c.Unread
		}
	}
	return &out, nil
}

// ListConversations 用户参与的会话，按最后活跃时间倒序，附带未读数
func (s *Service) ListConversations(ctx context.Context, userId string) ([]respond.ConversationRespond, error) {
	memberships, err := s.repos.Participant.FindActiveByUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	out := make([]respond.ConversationRespond, 0, len(memberships))
	if len(memberships) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(memberships))
	for _, p := range memberships {
		ids = append(ids, p.ConversationId)
	}
	convs, err := s.repos.Conversation.FindByUuids(ctx, ids)
	if err != nil {
		return nil, err
	}
	counts, err := s.repos.Message.CountUnread(ctx, userId)
	if err != nil {
		return nil, err
	}
	unread := make(map[string]int64, len(counts))
	for _, c := range counts {
		unread[c.ConversationId] = c.Unread
	}

	for i := range convs {
		if !convs[i].IsActive {
			continue
		}
		item := toConversationRespond(&convs[i])
		item.Unread = unread[convs[i].Uuid]
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := activity(out[i]), activity(out[j])
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Id > out[j].Id
	})
	return out, nil
}

// activity 没有消息的会话按创建时间参与排序
func activity(c respond.ConversationRespond) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}
