package handler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Trans 定义全局翻译器 (导出供 response.go 使用)
var Trans ut.Translator

// InitTrans 初始化翻译器
// locale 参数指定需要初始化的语言，例如 "zh" 或 "en"
// 翻译器同时交给 WebSocket 网关，事件校验错误与 HTTP 使用同一套文案
func InitTrans(locale string) (err error) {

	// HTTP 与 WebSocket 共用 binding.Validator，规则统一写在 binding tag 上
	if binding.Validator == nil {
		v := validator.New()
		v.SetTagName("binding")
		binding.Validator = &defaultValidator{validator: v}
	}

	// 修改 gin 框架中的 Validator 引擎属性，实现自定制
	// binding.Validator.Engine() 返回的是 interface{}，需要断言为 *validator.Validate 类型
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {

		// 报错信息使用 json 字段名（如 conversationId），查询参数没有 json tag 时退回 form tag
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			if name == "-" {
				return ""
			}
			return name
		})

		zhT := zh.New() // 初始化中文翻译器
		enT := en.New() // 初始化英文翻译器

		// 第一个参数是备用（fallback）的语言环境，当找不到匹配语言时使用该语言
		// 后面的参数是应该支持的语言环境（支持多个）
		// 这里设置英文为 fallback，同时支持中文和英文
		// uni: Universal Translator，通用翻译器，保存了所有支持的语言环境
		uni := ut.New(enT, zhT, enT)

		// locale 通常传 "zh"
		var ok bool
		// 根据传入的 locale 获取对应的翻译器
		Trans, ok = uni.GetTranslator(locale)
		if !ok {
			// 如果获取失败，返回错误
			return fmt.Errorf("uni.GetTranslator(%s) failed", locale)
		}

		// 注册翻译器
		// 根据 locale 注册对应的默认翻译规则
		switch locale {
		case "en":
			// 注册英文翻译
			err = en_translations.RegisterDefaultTranslations(v, Trans)
		case "zh":
			// 注册中文翻译
			err = zh_translations.RegisterDefaultTranslations(v, Trans)
		default:
			// 默认注册英文翻译
			err = en_translations.RegisterDefaultTranslations(v, Trans)
		}
	}
	return
}

// RemoveTopStruct 去除提示信息中的结构体名称，"SendMessageRequest.content" -> "content"
func RemoveTopStruct(fields map[string]string) map[string]string {
	res := make(map[string]string)
	for field, err := range fields {
		// 截取点号之后的部分
		res[field[strings.Index(field, ".")+1:]] = err
	}
	return res
}

// defaultValidator 实现 binding.StructValidator，binding.Validator 被置空时兜底
type defaultValidator struct {
	validator *validator.Validate
}

// ValidateStruct 实现 StructValidator 接口的 ValidateStruct 方法
func (v *defaultValidator) ValidateStruct(obj any) error {
	return v.validator.Struct(obj)
}

// Engine 实现 StructValidator 接口的 Engine 方法
func (v *defaultValidator) Engine() any {
	return v.validator
}
