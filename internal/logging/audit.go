package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditEventType names a structured audit event.
type AuditEventType string

const (
	AuditTurnStart    AuditEventType = "turn_start"
	AuditTurnEnd      AuditEventType = "turn_end"
	AuditLLMRequest   AuditEventType = "llm_request"
	AuditLLMResponse  AuditEventType = "llm_response"
	AuditLLMError     AuditEventType = "llm_error"
	AuditToolInvoke   AuditEventType = "tool_invoke"
	AuditToolComplete AuditEventType = "tool_complete"
	AuditToolError    AuditEventType = "tool_error"
	AuditChainFired   AuditEventType = "chain_fired"
	AuditCompaction   AuditEventType = "compaction"
	AuditFileRead     AuditEventType = "file_read"
	AuditFileWrite    AuditEventType = "file_write"
)

// AuditEvent is one JSON line in the audit log.
type AuditEvent struct {
	EventType  AuditEventType
	TurnID     string
	Target     string
	Action     string
	Success    bool
	DurationMs int64
	Error      string
	Fields     map[string]interface{}
}

var (
	auditMu   sync.Mutex
	auditFile *os.File
	auditZap  *zap.Logger
)

// AuditLogger writes audit events, optionally scoped to a turn.
type AuditLogger struct {
	turnID string
}

// InitAudit opens the audit log. It is a no-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		return nil
	}

	configMu.RLock()
	dir := logsDir
	configMu.RUnlock()
	if dir == "" {
		return fmt.Errorf("logging not initialized")
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_audit.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "event"
	encCfg.EncodeTime = zapcore.EpochMillisTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), zapcore.DebugLevel)

	auditFile = file
	auditZap = zap.New(core)
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditZap != nil {
		_ = auditZap.Sync()
		auditZap = nil
	}
	if auditFile != nil {
		_ = auditFile.Close()
		auditFile = nil
	}
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithTurn returns an audit logger scoped to a turn id.
func AuditWithTurn(turnID string) *AuditLogger {
	return &AuditLogger{turnID: turnID}
}

// Log writes an audit event.
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditZap == nil || !IsDebugMode() {
		return
	}

	if event.TurnID == "" {
		event.TurnID = a.turnID
	}
	fields := []zap.Field{
		zap.String("turn", event.TurnID),
		zap.String("target", event.Target),
		zap.Bool("success", event.Success),
	}
	if event.Action != "" {
		fields = append(fields, zap.String("action", event.Action))
	}
	if event.DurationMs > 0 {
		fields = append(fields, zap.Int64("dur_ms", event.DurationMs))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	if len(event.Fields) > 0 {
		fields = append(fields, zap.Any("fields", event.Fields))
	}
	auditZap.Info(string(event.EventType), fields...)
}

// TurnStart records the start of a conversational turn.
func (a *AuditLogger) TurnStart(inputLen int) {
	a.Log(AuditEvent{EventType: AuditTurnStart, Success: true, Fields: map[string]interface{}{"input_len": inputLen}})
}

// TurnEnd records the end of a turn.
func (a *AuditLogger) TurnEnd(success bool, toolCalls int, dur time.Duration) {
	a.Log(AuditEvent{
		EventType:  AuditTurnEnd,
		Success:    success,
		DurationMs: dur.Milliseconds(),
		Fields:     map[string]interface{}{"tool_calls": toolCalls},
	})
}

// LLMCall records a transport round-trip.
func (a *AuditLogger) LLMCall(provider string, streaming bool, err error, dur time.Duration) {
	ev := AuditEvent{
		EventType:  AuditLLMResponse,
		Target:     provider,
		Success:    err == nil,
		DurationMs: dur.Milliseconds(),
		Fields:     map[string]interface{}{"stream": streaming},
	}
	if err != nil {
		ev.EventType = AuditLLMError
		ev.Error = err.Error()
	}
	a.Log(ev)
}

// ToolInvoke records a tool call before execution.
func (a *AuditLogger) ToolInvoke(tool, origin string) {
	a.Log(AuditEvent{EventType: AuditToolInvoke, Target: tool, Action: origin, Success: true})
}

// ToolComplete records a tool outcome.
func (a *AuditLogger) ToolComplete(tool string, errMsg string, dur time.Duration) {
	ev := AuditEvent{EventType: AuditToolComplete, Target: tool, Success: errMsg == "", DurationMs: dur.Milliseconds()}
	if errMsg != "" {
		ev.EventType = AuditToolError
		ev.Error = errMsg
	}
	a.Log(ev)
}

// ChainFired records an automatic follow-up call.
func (a *AuditLogger) ChainFired(rule, parent, child string) {
	a.Log(AuditEvent{EventType: AuditChainFired, Target: child, Action: rule, Success: true,
		Fields: map[string]interface{}{"parent": parent}})
}

// Compaction records a committed history compaction.
func (a *AuditLogger) Compaction(before, after, removedMessages int) {
	a.Log(AuditEvent{EventType: AuditCompaction, Success: true, Fields: map[string]interface{}{
		"tokens_before": before, "tokens_after": after, "removed_messages": removedMessages,
	}})
}

// FileOp records a workspace read or write.
func (a *AuditLogger) FileOp(write bool, path string, size int, err error) {
	ev := AuditEvent{EventType: AuditFileRead, Target: path, Success: err == nil,
		Fields: map[string]interface{}{"size": size}}
	if write {
		ev.EventType = AuditFileWrite
	}
	if err != nil {
		ev.Error = err.Error()
	}
	a.Log(ev)
}
