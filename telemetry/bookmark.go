package telemetry

import (
	"fmt"
	"log/slog"
	"math"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkSpeedSurge    BookmarkType = "speed_surge"
	BookmarkEnergySpike   BookmarkType = "energy_spike"
	BookmarkMomentumDrift BookmarkType = "momentum_drift"
	BookmarkNonFinite     BookmarkType = "non_finite"
	BookmarkVirialSettled BookmarkType = "virial_settled"
)

// Detection thresholds.
const (
	speedSurgeFactor     = 3.0  // mean speed vs rolling average
	energySpikeThreshold = 0.05 // relative energy drift
	momentumDriftFrac    = 0.01 // momentum drift vs M*v_mean
	virialBand           = 0.1  // |2K/|U| - 1| band
	virialSettleWindows  = 5    // consecutive windows inside the band
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType
	Step        uint64
	Description string
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"step", b.Step,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// Conservation reference (first measurement seen)
	ref    Conserved
	hasRef bool

	// State tracking
	energyAlarm   bool // energy drift currently above threshold
	momentumAlarm bool // momentum drift currently above threshold
	seenNonFinite int  // highest non-finite count reported so far
	virialWindows int  // consecutive windows near virial equilibrium
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < virialSettleWindows {
		historySize = virialSettleWindows
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
// cons carries the conservation measurement for this window and may be
// nil on windows where none was taken; the conservation checks only run
// when it is present.
func (bd *BookmarkDetector) Check(stats WindowStats, cons *Conserved) []Bookmark {
	var bookmarks []Bookmark

	if cons != nil && !bd.hasRef {
		bd.ref = *cons
		bd.hasRef = true
	}

	if bd.historyFull || bd.historyIdx > 0 {
		// Speed surge: mean speed > 3x rolling average
		if b := bd.checkSpeedSurge(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// First appearance (or growth) of non-finite particles
		if b := bd.checkNonFinite(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		if cons != nil {
			// Energy drift crossing the threshold
			if b := bd.checkEnergySpike(stats, *cons); b != nil {
				bookmarks = append(bookmarks, *b)
			}

			// Momentum drift vs the bulk momentum scale
			if b := bd.checkMomentumDrift(stats, *cons); b != nil {
				bookmarks = append(bookmarks, *b)
			}

			// Virial settling: near 2K = |U| over consecutive windows
			if b := bd.checkVirialSettled(stats, *cons); b != nil {
				bookmarks = append(bookmarks, *b)
			}
		}
	}

	// Update history
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

func (bd *BookmarkDetector) checkSpeedSurge(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	// Calculate rolling average mean speed
	var total float64
	for _, h := range history {
		total += h.SpeedMean
	}
	avg := total / float64(len(history))
	if avg <= 0 {
		return nil
	}

	if stats.SpeedMean > avg*speedSurgeFactor {
		return &Bookmark{
			Type:        BookmarkSpeedSurge,
			Step:        stats.WindowEnd,
			Description: fmt.Sprintf("Mean speed %.3g is %.1fx rolling average (%.3g)", stats.SpeedMean, stats.SpeedMean/avg, avg),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkNonFinite(stats WindowStats) *Bookmark {
	if stats.NonFinite <= bd.seenNonFinite {
		return nil
	}

	prev := bd.seenNonFinite
	bd.seenNonFinite = stats.NonFinite

	return &Bookmark{
		Type:        BookmarkNonFinite,
		Step:        stats.WindowEnd,
		Description: fmt.Sprintf("Non-finite particles rose from %d to %d", prev, stats.NonFinite),
	}
}

func (bd *BookmarkDetector) checkEnergySpike(stats WindowStats, cons Conserved) *Bookmark {
	e0 := bd.ref.Energy()
	var drift float64
	if math.Abs(e0) > 1e-12 {
		drift = math.Abs(cons.Energy()-e0) / math.Abs(e0)
	} else {
		drift = math.Abs(cons.Energy() - e0)
	}

	// Re-arm only after the drift falls back below half the threshold
	if drift < energySpikeThreshold/2 {
		bd.energyAlarm = false
	}
	if bd.energyAlarm || drift <= energySpikeThreshold {
		return nil
	}

	bd.energyAlarm = true
	return &Bookmark{
		Type:        BookmarkEnergySpike,
		Step:        stats.WindowEnd,
		Description: fmt.Sprintf("Energy drift %.1f%% crossed %.0f%%", drift*100, energySpikeThreshold*100),
	}
}

func (bd *BookmarkDetector) checkMomentumDrift(stats WindowStats, cons Conserved) *Bookmark {
	// Compare against the bulk momentum scale M*v_mean
	scale := cons.Mass * stats.SpeedMean
	if scale <= 0 {
		return nil
	}

	dpx := cons.Px - bd.ref.Px
	dpy := cons.Py - bd.ref.Py
	dpz := cons.Pz - bd.ref.Pz
	drift := math.Sqrt(dpx*dpx + dpy*dpy + dpz*dpz)

	if drift < momentumDriftFrac*scale/2 {
		bd.momentumAlarm = false
	}
	if bd.momentumAlarm || drift <= momentumDriftFrac*scale {
		return nil
	}

	bd.momentumAlarm = true
	return &Bookmark{
		Type:        BookmarkMomentumDrift,
		Step:        stats.WindowEnd,
		Description: fmt.Sprintf("Momentum drift %.3g exceeds %.1f%% of M*v_mean (%.3g)", drift, momentumDriftFrac*100, scale),
	}
}

func (bd *BookmarkDetector) checkVirialSettled(stats WindowStats, cons Conserved) *Bookmark {
	if cons.Potential >= 0 || cons.Kinetic <= 0 {
		bd.virialWindows = 0
		return nil
	}

	ratio := 2 * cons.Kinetic / -cons.Potential
	if math.Abs(ratio-1) < virialBand {
		bd.virialWindows++
	} else {
		bd.virialWindows = 0
	}

	if bd.virialWindows == virialSettleWindows { // trigger exactly once
		return &Bookmark{
			Type:        BookmarkVirialSettled,
			Step:        stats.WindowEnd,
			Description: fmt.Sprintf("Virial ratio 2K/|U| = %.2f held over %d windows", ratio, virialSettleWindows),
		}
	}

	return nil
}
