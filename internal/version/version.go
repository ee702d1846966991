// 包 version：构建期注入的版本标识
package version

// Commit：构建时通过 -ldflags "-X geo-cache/internal/version.Commit=..." 注入
var Commit = "dev"
