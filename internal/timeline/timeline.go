// Package timeline turns a normalized trace into a display timeline: one
// event per message with per-event durations, grouped into phases (schema
// fetch, data query, chart generation, analysis).
package timeline

import (
	"log/slog"
	"sort"
	"time"

	"github.com/spboyer/gdabench/internal/trace"
)

// Event is a single timeline entry derived from one trace message.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	Icon         string    `json:"icon"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	ContentType  string    `json:"content_type"`
	DurationMS   int64     `json:"duration_ms"`
	CumulativeMS int64     `json:"cumulative_ms"`
}

// Group is a run of consecutive events belonging to the same phase.
type Group struct {
	Title      string  `json:"title"`
	Icon       string  `json:"icon"`
	DurationMS int64   `json:"duration_ms"`
	Events     []Event `json:"events"`
}

// Timeline is the fully resolved view of a trial's trace.
type Timeline struct {
	Groups []Group `json:"groups"`

	// TotalDurationMS is the reported total, clamped so it is never
	// smaller than the cumulative duration of the trace itself. Group
	// durations sum exactly to this value.
	TotalDurationMS int64 `json:"total_duration_ms"`

	// ToolTimings maps each phase title to the total milliseconds spent
	// in it.
	ToolTimings map[string]int64 `json:"tool_timings"`
}

// Options configures timeline construction.
type Options struct {
	// TTFRMS is the time-to-first-response. It becomes the duration of
	// the first event when no Baseline is given.
	TTFRMS int64

	// TotalDurationMS is the measured wall-clock total for the trial.
	TotalDurationMS int64

	// Baseline, when set, anchors the first event's duration to the
	// interval from Baseline to the first timestamp instead of TTFRMS.
	Baseline *time.Time

	Logger *slog.Logger
}

// Build constructs the timeline for a normalized trace.
func Build(msgs []trace.Message, opts Options) *Timeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	events := buildEvents(msgs, opts, logger)

	var cumulative int64
	if n := len(events); n > 0 {
		cumulative = events[n-1].CumulativeMS
	}

	total := opts.TotalDurationMS
	if total < cumulative {
		total = cumulative
	}

	groups := groupEvents(events)

	// The last group absorbs the gap between the trace's cumulative
	// duration and the reported total, so group durations always sum
	// exactly to TotalDurationMS.
	if len(groups) > 0 {
		groups[len(groups)-1].DurationMS += total - cumulative
	}

	timings := make(map[string]int64, len(groups))
	for _, g := range groups {
		timings[g.Title] += g.DurationMS
	}

	return &Timeline{
		Groups:          groups,
		TotalDurationMS: total,
		ToolTimings:     timings,
	}
}

// timestampLayouts covers the formats seen on the wire: RFC 3339 with or
// without fractional seconds, and zone-less variants.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func buildEvents(msgs []trace.Message, opts Options, logger *slog.Logger) []Event {
	events := make([]Event, 0, len(msgs))

	for i := range msgs {
		msg := &msgs[i]
		ts, ok := parseTimestamp(msg.Timestamp)
		if !ok {
			if msg.Timestamp != "" {
				logger.Debug("dropping event with unparsable timestamp", "timestamp", msg.Timestamp)
			}
			continue
		}
		icon, title, content, contentType := classify(msg)
		events = append(events, Event{
			Timestamp:   ts,
			Icon:        icon,
			Title:       title,
			Content:     content,
			ContentType: contentType,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	var cumulative int64
	for i := range events {
		var d int64
		switch {
		case i > 0:
			d = events[i].Timestamp.Sub(events[i-1].Timestamp).Milliseconds()
		case opts.Baseline != nil:
			d = events[i].Timestamp.Sub(*opts.Baseline).Milliseconds()
		default:
			d = opts.TTFRMS
		}
		if d < 0 {
			d = 0
		}
		events[i].DurationMS = d
		cumulative += d
		events[i].CumulativeMS = cumulative
	}

	return events
}

// phaseForTitle maps an action event title to its phase. Reasoning events
// (thoughts, progress updates) have no phase of their own and attach to the
// phase of the next action.
func phaseForTitle(title string) (string, string, bool) {
	switch title {
	case TitleSchema:
		return "Schema Fetch", "🗂️", true
	case TitleData:
		return "Data Query", "🛢️", true
	case TitleChart:
		return "Chart Generation", "📊", true
	case TitleAnalysis:
		return "Advanced Analysis", "🧪", true
	case TitleFinal:
		return "Analysis", "💬", true
	default:
		return "", "", false
	}
}

func isReasoning(title string) bool {
	return title == TitleThought || title == TitleProgress
}

func groupEvents(events []Event) []Group {
	type label struct {
		title string
		icon  string
	}
	labels := make([]label, len(events))

	for i, ev := range events {
		if title, icon, ok := phaseForTitle(ev.Title); ok {
			labels[i] = label{title, icon}
			continue
		}
		if isReasoning(ev.Title) {
			// Attach to the phase of the next action event, falling
			// back to the preceding phase at the tail of the trace.
			attached := false
			for j := i + 1; j < len(events); j++ {
				if title, icon, ok := phaseForTitle(events[j].Title); ok {
					labels[i] = label{title, icon}
					attached = true
					break
				}
			}
			if !attached {
				if i > 0 {
					labels[i] = labels[i-1]
				} else {
					labels[i] = label{"Reasoning", "💭"}
				}
			}
			continue
		}
		// Errors and unknown shapes stay inside the active phase.
		if i > 0 {
			labels[i] = labels[i-1]
		} else {
			labels[i] = label{ev.Title, ev.Icon}
		}
	}

	var groups []Group
	for i, ev := range events {
		if n := len(groups); n > 0 && groups[n-1].Title == labels[i].title {
			g := &groups[n-1]
			g.Events = append(g.Events, ev)
			g.DurationMS += ev.DurationMS
			continue
		}
		groups = append(groups, Group{
			Title:      labels[i].title,
			Icon:       labels[i].icon,
			DurationMS: ev.DurationMS,
			Events:     []Event{ev},
		})
	}
	return groups
}
