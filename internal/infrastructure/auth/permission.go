package auth

import "strings"

// PermissionChecker 判定某身份能否执行某动作，只在 HTTP 层使用
type PermissionChecker interface {
	Allow(identity *Identity, action string) bool
}

// RolePolicy 基于配置的角色权限表
// 动作形如 "conversation:create"，规则支持 "*" 与 "conversation:*"
type RolePolicy struct {
	rules       map[string][]string
	defaultRole string
}

// NewRolePolicy 创建角色权限表，身份未携带角色时按 defaultRole 处理
func NewRolePolicy(rules map[string][]string, defaultRole string) *RolePolicy {
	return &RolePolicy{rules: rules, defaultRole: defaultRole}
}

func (p *RolePolicy) Allow(identity *Identity, action string) bool {
	if identity == nil {
		return false
	}
	role := identity.Role
	if role == "" {
		role = p.defaultRole
	}
	for _, rule := range p.rules[role] {
		if rule == "*" || rule == action {
			return true
		}
		if prefix, ok := strings.CutSuffix(rule, "*"); ok && strings.HasPrefix(action, prefix) {
			return true
		}
	}
	return false
}

var _ PermissionChecker = (*RolePolicy)(nil)
