// Package usage keeps per-process session counters in a prometheus registry.
// Nothing is persisted; /status reads a Snapshot and /metrics dumps the
// registry in the text exposition format.
package usage

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"codeassist/internal/logging"
)

const namespace = "codeassist"

// Tracker owns the session metrics. Each tracker has its own registry so
// independent sessions (and tests) never share counters.
type Tracker struct {
	registry *prometheus.Registry

	turns        *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	chainHops    *prometheus.CounterVec
	compactions  prometheus.Counter
	tokens       *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
}

// NewTracker creates a tracker with all collectors registered.
func NewTracker() *Tracker {
	t := &Tracker{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		chainHops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_hops_total",
			Help:      "Automatically chained tool calls by rule.",
		}, []string{"rule"}),
		compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compactions_total",
			Help:      "Committed history compactions.",
		}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Model tokens reported by the service, by direction.",
		}, []string{"direction"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool execution time in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	t.registry.MustRegister(t.turns, t.toolCalls, t.chainHops, t.compactions, t.tokens, t.toolDuration)
	return t
}

// Registry exposes the underlying registry.
func (t *Tracker) Registry() *prometheus.Registry {
	return t.registry
}

// TurnCompleted records a finished turn.
func (t *Tracker) TurnCompleted(outcome string) {
	t.turns.WithLabelValues(outcome).Inc()
}

// ToolCall records one executed tool call.
func (t *Tracker) ToolCall(tool string, ok bool, dur time.Duration) {
	outcome := OutcomeOK
	if !ok {
		outcome = OutcomeError
	}
	t.toolCalls.WithLabelValues(tool, outcome).Inc()
	t.toolDuration.WithLabelValues(tool).Observe(dur.Seconds())
}

// ChainHop records a chained call issued by rule.
func (t *Tracker) ChainHop(rule string) {
	t.chainHops.WithLabelValues(rule).Inc()
}

// Compaction records a committed compaction.
func (t *Tracker) Compaction() {
	t.compactions.Inc()
}

// Tokens records model token usage.
func (t *Tracker) Tokens(input, output int) {
	if input > 0 {
		t.tokens.WithLabelValues(DirectionInput).Add(float64(input))
	}
	if output > 0 {
		t.tokens.WithLabelValues(DirectionOutput).Add(float64(output))
	}
}

// Snapshot reads the current counter values.
func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{
		Turns:     map[string]int{},
		ByTool:    map[string]int{},
		ChainHops: map[string]int{},
	}
	families, err := t.registry.Gather()
	if err != nil {
		logging.Usage("Gather failed: %v", err)
		return s
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := labelMap(m)
			v := int(m.GetCounter().GetValue())
			switch mf.GetName() {
			case namespace + "_turns_total":
				s.Turns[labels["outcome"]] += v
			case namespace + "_tool_calls_total":
				s.ToolCalls += v
				s.ByTool[labels["tool"]] += v
				if labels["outcome"] == OutcomeError {
					s.ToolErrors += v
				}
			case namespace + "_chain_hops_total":
				s.ChainHops[labels["rule"]] += v
			case namespace + "_compactions_total":
				s.Compactions += v
			case namespace + "_model_tokens_total":
				switch labels["direction"] {
				case DirectionInput:
					s.Tokens.Add(v, 0)
				case DirectionOutput:
					s.Tokens.Add(0, v)
				}
			}
		}
	}
	return s
}

func labelMap(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

// WriteText writes every metric in the prometheus text format.
func (t *Tracker) WriteText(w io.Writer) error {
	families, err := t.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
