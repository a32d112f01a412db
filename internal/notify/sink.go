package notify

import "log"

// Sink 是通知投递抽象（推送/短信/邮件），对核心来说尽力而为。
// 单条投递失败只记日志，绝不影响其余通知。
type Sink interface {
	Deliver(n Notification) error
}

// LogSink 把通知写进日志，是默认的投递实现。
// 接入真实推送渠道时实现 Sink 替换即可。
type LogSink struct {
	logger *log.Logger
}

// NewLogSink 构造日志投递器，logger 为 nil 时使用默认 logger
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

// Deliver 记录一条通知
func (s *LogSink) Deliver(n Notification) error {
	s.logger.Printf("[notify] farmer=%d type=%s priority=%s title=%q", n.FarmerID, n.Type, n.Priority, n.Title)
	return nil
}
