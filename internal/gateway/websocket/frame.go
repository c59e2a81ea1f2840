package websocket

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"realtime_chat_server/internal/dto/respond"
	"realtime_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin/binding"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// InboundFrame 客户端上行帧
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutboundFrame 服务端下行帧
type OutboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// EncodeFrame 序列化下行帧
func EncodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(OutboundFrame{Event: event, Data: data})
}

// namespace 取事件名第一段，"chat:message:edit" -> "chat"
func namespace(event string) string {
	ns, _, _ := strings.Cut(event, ":")
	switch ns {
	case "chat", "presence", "typing":
		return ns
	default:
		return "chat"
	}
}

// errorEvent 事件对应的错误事件名
func errorEvent(event string) string {
	return namespace(event) + ":error"
}

// decodePayload 解析并校验事件数据
// 与 HTTP 共用 gin 的 binding 校验器，规则写在 binding tag 上
func decodePayload(data json.RawMessage, dst any, trans ut.Translator) error {
	if len(data) == 0 || string(data) == "null" {
		return errorx.Validation("缺少 data")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errorx.Validation("data 格式错误")
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return errorx.Validation("%s", validationMessage(err, trans))
	}
	return nil
}

// validationMessage 把校验错误翻译成一行文本
func validationMessage(err error, trans ut.Translator) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	if trans == nil {
		return errs.Error()
	}
	fields := errs.Translate(trans)
	msgs := make([]string, 0, len(fields))
	for _, msg := range fields {
		msgs = append(msgs, msg)
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

// errorMessage 错误对客户端可见的文本
// 存储、缓存等内部错误只记录日志，客户端统一看到"服务繁忙"
func errorMessage(event string, err error) string {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) {
		switch codeErr.Code {
		case errorx.CodeServerBusy, errorx.CodeDBError, errorx.CodeCacheError:
		default:
			return codeErr.Msg
		}
	}
	zap.L().Error("ws event failed", zap.String("event", event), zap.Error(err))
	return errorx.ErrServerBusy.Msg
}

// errorFrame 构造发给来源连接的错误帧
func errorFrame(event string, err error) []byte {
	frame, _ := EncodeFrame(errorEvent(event), respond.ErrorRespond{
		Event:   event,
		Message: errorMessage(event, err),
	})
	return frame
}
