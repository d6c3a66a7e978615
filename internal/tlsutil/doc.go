// Package tlsutil 提供出站连接（LLM Provider HTTP 客户端、Redis）共用的 TLS 加固配置：
// TLS 1.2+，仅 AEAD 密码套件。
package tlsutil
