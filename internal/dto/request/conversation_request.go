package request

// CreateDirectRequest 创建（或获取已有）单聊
// 使用位置:
//   - POST /conversation/direct
type CreateDirectRequest struct {
	PeerId string `json:"peerId" binding:"required,max=64"`
}

// CreateGroupRequest 创建群聊，创建者自动成为管理员
// 使用位置:
//   - POST /conversation/group
type CreateGroupRequest struct {
	Name           string   `json:"name" binding:"required,max=64"`
	Description    string   `json:"description" binding:"max=512"`
	ParticipantIds []string `json:"participantIds" binding:"required,min=1,max=500,dive,required,max=64"`
}

// AddParticipantsRequest 管理员拉人入群
// 使用位置:
//   - POST /conversation/addParticipants
type AddParticipantsRequest struct {
	ConversationId string   `json:"conversationId" binding:"required,max=64"`
	UserIds        []string `json:"userIds" binding:"required,min=1,max=500,dive,required,max=64"`
}

// RemoveParticipantRequest 管理员移除成员
// 使用位置:
//   - POST /conversation/removeParticipant
type RemoveParticipantRequest struct {
	ConversationId string `json:"conversationId" binding:"required,max=64"`
	UserId         string `json:"userId" binding:"required,max=64"`
}

// UpdateGroupInfoRequest 修改群名称/描述，未传的字段保持不变
// 使用位置:
//   - POST /conversation/updateGroupInfo
type UpdateGroupInfoRequest struct {
	ConversationId string  `json:"conversationId" binding:"required,max=64"`
	Name           *string `json:"name" binding:"omitempty,max=64"`
	Description    *string `json:"description" binding:"omitempty,max=512"`
}
