package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer SMTP邮件客户端。
// 审批创建/审批结果/用户批准三条路径复用，失败由调用方记录日志，不阻塞业务。
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewMailer 创建邮件客户端
func NewMailer(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send 发送纯文本邮件
func (m *Mailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain; charset=UTF-8", body)

	d := gomail.NewDialer(m.host, m.port, m.username, m.password)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("发送邮件失败 (to=%s): %w", to, err)
	}
	return nil
}

// SendApprovalCreated 审批请求创建通知
func (m *Mailer) SendApprovalCreated(to, requesterName, projectName, memo string) error {
	subject := fmt.Sprintf("[审批请求] %s - %s", projectName, requesterName)
	body := fmt.Sprintf("%s 向您发起了项目 %s 的审批请求。\n\n申请内容:\n%s\n\n请登录系统处理。", requesterName, projectName, memo)
	return m.Send(to, subject, body)
}

// SendApprovalResolved 审批结果通知
func (m *Mailer) SendApprovalResolved(to, approverName, projectName, status, responseMemo string) error {
	resultText := "通过"
	if status == "rejected" {
		resultText = "驳回"
	}
	subject := fmt.Sprintf("[审批%s] %s", resultText, projectName)
	body := fmt.Sprintf("%s 已%s您在项目 %s 的审批请求。", approverName, resultText, projectName)
	if responseMemo != "" {
		body += fmt.Sprintf("\n\n审批意见:\n%s", responseMemo)
	}
	return m.Send(to, subject, body)
}

// SendUserApproved 账号批准通知
func (m *Mailer) SendUserApproved(to, userName string) error {
	subject := "[账号批准] 您的账号已开通"
	body := fmt.Sprintf("%s 您好，\n\n您的账号已由管理员批准，现在可以登录系统。", userName)
	return m.Send(to, subject, body)
}
