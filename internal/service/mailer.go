package service

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Mailer 发送邮箱验证邮件
type Mailer interface {
	SendVerification(ctx context.Context, to, username, link string) error
}

// LogMailer 不发信，只把验证链接写入日志，开发环境使用
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer 创建日志邮件器
func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{log: log}
}

// SendVerification 实现 Mailer
func (m *LogMailer) SendVerification(_ context.Context, to, username, link string) error {
	m.log.Info("验证邮件未配置SMTP，仅记录链接",
		zap.String("to", to),
		zap.String("username", username),
		zap.String("link", link),
	)
	return nil
}

// SMTPConfig SMTP 发信参数
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer 通过 SMTP 发送验证邮件
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer 创建 SMTP 邮件器
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// SendVerification 实现 Mailer
func (m *SMTPMailer) SendVerification(ctx context.Context, to, username, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	return m.send(addr, auth, envelopeAddress(m.cfg.From), []string{to}, verificationMessage(m.cfg.From, to, username, link))
}

// envelopeAddress 从 "Name <addr>" 中取出信封地址
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return from
}

func verificationMessage(from, to, username, link string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Verify your RedVelvet email\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", username)
	b.WriteString("Please confirm your email address by opening the link below:\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", link)
	b.WriteString("The link is valid for a limited time. If you did not create an account, ignore this email.\r\n")
	return []byte(b.String())
}
