// Package https_server 提供 HTTP/HTTPS 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件、静态资源和路由
package https_server

import (
	"realtime_chat_server/internal/config"                    // 配置管理
	"realtime_chat_server/internal/infrastructure/logger"     // 自定义日志中间件
	"realtime_chat_server/internal/infrastructure/middleware" // TLS 重定向
	"realtime_chat_server/internal/router"                    // 路由注册

	"github.com/gin-contrib/cors" // CORS 跨域中间件
	"github.com/gin-gonic/gin"    // Gin Web 框架
)

// StaticPrefix 本地上传附件的访问前缀
const StaticPrefix = "/static/files"

// Init 初始化 HTTP/HTTPS 服务器并返回 Gin 引擎实例
// 配置顺序：
//  1. 创建 Gin 引擎（空白，不含默认中间件）
//  2. 注册日志和恢复中间件
//  3. 配置 CORS 跨域规则，按需开启 TLS 重定向
//  4. 映射静态资源目录
//  5. 注册业务路由
func Init(conf *config.Config, rt *router.Router) *gin.Engine {
	if conf.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	// GinLogger 记录每个请求的路径、状态码、耗时
	engine.Use(logger.GinLogger())
	// 捕获 panic 并记录堆栈
	engine.Use(logger.GinRecovery(true))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // 生产环境应指定具体域名
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	// 由 Nginx 终结 TLS 时保持关闭
	if conf.TlsRedirect {
		engine.Use(middleware.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port, conf.Mode == "dev"))
	}

	// /static/files -> 附件上传目录
	engine.Static(StaticPrefix, conf.StaticFilePath)

	rt.RegisterRoutes(engine)
	return engine
}
