// Package progress defines the status events the core emits during a run,
// and a klog-backed Sink that renders them for a human when verbose mode is
// on.
package progress

import (
	"time"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// EventKind names one of the status events the core can emit.
type EventKind int

const (
	HashingImage EventKind = iota
	HashingFile
	MatchingFile
	ExtentFound
	BuildingPlan
	Emitting
)

func (k EventKind) String() string {
	switch k {
	case HashingImage:
		return "hashing_image"
	case HashingFile:
		return "hashing_file"
	case MatchingFile:
		return "matching_file"
	case ExtentFound:
		return "extent_found"
	case BuildingPlan:
		return "building_plan"
	case Emitting:
		return "emitting"
	default:
		return "unknown"
	}
}

// Event is one status notification. Only the fields relevant to Kind are
// populated; the rest are zero. At is set only on the ExtentFound events
// KlogSink builds itself; events the pipeline sends leave At zero, and
// KlogSink does not print it (klog stamps each log line on its own).
type Event struct {
	Kind      EventKind
	At        time.Time
	Path      string
	Progress  float64 // MatchingFile: fraction in [0,1]
	FileOff   int64   // ExtentFound
	ImageOff  int64   // ExtentFound
	Length    int64   // ExtentFound
}

// Sink receives events as the core makes progress. NopSink (a Nop value)
// discards everything, so callers never need to branch on whether verbose
// mode is enabled.
type Sink interface {
	Notify(Event)
}

// KlogSink renders every event as a human-readable log line through
// klog.Info, without a verbosity-level check of its own; callers use it only
// when verbose mode is on.
type KlogSink struct{}

// NewKlogSink returns a Sink that writes through klog.
func NewKlogSink() KlogSink {
	return KlogSink{}
}

func (KlogSink) Notify(e Event) {
	switch e.Kind {
	case HashingImage:
		klog.Info("hashing image")
	case HashingFile:
		klog.Infof("hashing file %s", e.Path)
	case MatchingFile:
		klog.Infof("matching file %s (%.1f%%)", e.Path, e.Progress*100)
	case ExtentFound:
		klog.Infof("extent found in %s: file@%d -> image@%d, %s", e.Path, e.FileOff, e.ImageOff, humanize.Bytes(uint64(e.Length)))
	case BuildingPlan:
		klog.Info("building reconstruction plan")
	case Emitting:
		klog.Info("emitting script")
	}
}

// Nop discards every event; used when verbose mode is off. It also
// satisfies extent.Sink, so the same value can be threaded through
// discovery without the caller branching on whether reporting is enabled.
type Nop struct{}

func (Nop) Notify(Event) {}

func (Nop) ExtentFound(string, int64, int64, int64) {}

// NopSink is the Sink used when verbose reporting is disabled.
var NopSink Sink = Nop{}

// ExtentFound satisfies extent.Sink, adapting the richer Event shape to the
// narrower notification the extent discoverer emits.
func (s KlogSink) ExtentFound(path string, fileOffset, imageOffset, length int64) {
	s.Notify(Event{Kind: ExtentFound, At: clockNow(), Path: path, FileOff: fileOffset, ImageOff: imageOffset, Length: length})
}

// clockNow is the single place real time enters this package.
func clockNow() time.Time {
	return time.Now()
}
