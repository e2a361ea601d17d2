package tools

import "sync"

// Record is one entry of the tool-call audit log.
type Record struct {
	Index  int
	Call   ToolCall
	Result Result

	// Rule names the chain rule that issued the call, if any.
	Rule string
}

// CallLog is the append-only tool-call audit log for a session.
type CallLog struct {
	mu      sync.RWMutex
	records []Record
}

// NewCallLog creates an empty log.
func NewCallLog() *CallLog {
	return &CallLog{}
}

// Append records a call and returns the stored entry.
func (l *CallLog) Append(call ToolCall, result Result, rule string) Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := Record{Index: len(l.records), Call: call, Result: result, Rule: rule}
	l.records = append(l.records, rec)
	return rec
}

// Recent returns up to n of the latest records, oldest first.
func (l *CallLog) Recent(n int) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := len(l.records) - n
	if start < 0 {
		start = 0
	}
	out := make([]Record, len(l.records)-start)
	copy(out, l.records[start:])
	return out
}

// All returns a copy of every record.
func (l *CallLog) All() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *CallLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
