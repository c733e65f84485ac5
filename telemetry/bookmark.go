package telemetry

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/hfps/components"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkPanic      BookmarkType = "panic"       // Security p10 crossed the panic level
	BookmarkCalm       BookmarkType = "calm"        // every channel mean back near zero after a panic
	BookmarkHabituated BookmarkType = "habituated"  // a channel's mean habituation near its floor
	BookmarkMatchSpike BookmarkType = "match_spike" // listener matches > 2x rolling average
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int32        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// Detector thresholds.
const (
	calmLevel       = 1.0  // |mean| below this on every channel counts as calm
	habituatedLevel = -0.8 // mean habituation at or below this counts as saturated
)

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	panicLevel float64

	// State tracking
	panicking  bool
	habituated [components.NumChannels]bool
}

// NewBookmarkDetector creates a detector with the given history size.
// panicLevel is the Security value (negative) whose crossing by the 10th
// percentile marks a panic.
func NewBookmarkDetector(historySize int, panicLevel float64) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
		panicLevel:  panicLevel,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkPanic(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkCalm(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	bookmarks = append(bookmarks, bd.checkHabituated(stats)...)

	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkMatchSpike(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkPanic(stats WindowStats) *Bookmark {
	sec := stats.Channels[components.Security]
	if bd.panicking || stats.Agents == 0 || sec.P10 > bd.panicLevel {
		return nil
	}
	bd.panicking = true
	return &Bookmark{
		Type:        BookmarkPanic,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Security p10 %.1f at or below %.1f", sec.P10, bd.panicLevel),
	}
}

func (bd *BookmarkDetector) checkCalm(stats WindowStats) *Bookmark {
	if !bd.panicking {
		return nil
	}
	for _, c := range stats.Channels {
		if math.Abs(c.Mean) >= calmLevel {
			return nil
		}
	}
	bd.panicking = false
	return &Bookmark{
		Type:        BookmarkCalm,
		Tick:        stats.WindowEndTick,
		Description: "all channel means within 1 of zero",
	}
}

func (bd *BookmarkDetector) checkHabituated(stats WindowStats) []Bookmark {
	var out []Bookmark
	for ch, c := range stats.Channels {
		saturated := stats.Agents > 0 && c.HabituationMean <= habituatedLevel
		if saturated && !bd.habituated[ch] {
			out = append(out, Bookmark{
				Type:        BookmarkHabituated,
				Tick:        stats.WindowEndTick,
				Description: fmt.Sprintf("%s mean habituation %.3f", components.Channel(ch), c.HabituationMean),
			})
		}
		bd.habituated[ch] = saturated
	}
	return out
}

func (bd *BookmarkDetector) checkMatchSpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	var sum float64
	for _, h := range history {
		sum += float64(h.Matches)
	}
	avg := sum / float64(len(history))
	if avg <= 0 || float64(stats.Matches) <= 2*avg {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkMatchSpike,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d listener matches vs rolling average %.0f", stats.Matches, avg),
	}
}
