// 包 version：构建版本信息，由 -ldflags 注入
package version

// Version 为发布版本号；默认 User-Agent 由此生成
var Version = "0.3.0"

// Commit 为构建时的提交哈希（-ldflags "-X pleiades-api/internal/version.Commit=..."）
var Commit = "dev"
