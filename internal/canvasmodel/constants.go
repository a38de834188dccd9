package canvasmodel

import "time"

// Layout and timing constants from spec sections 4.4.5 and 5. Treated
// as tunable defaults, not guarantees (spec section 9's open question);
// internal/config does not expose them.
const (
	ShapeSpacing       = 20
	DefaultWidth       = 200
	DefaultFrameWidth  = 320
	DefaultFrameHeight = 200
	FrameInnerPadding  = 40
	FrameHeaderOffset  = 56
	MaxImageDisplayDim = 480

	FrameMaxCellsPerRow  = 5
	RootPlacementMaxTry  = 50
	FramePlacementMaxTry = 100
)

const (
	FSDebounce         = 300 * time.Millisecond
	SnapshotDebounce   = 500 * time.Millisecond
	AnnotationDebounce = 800 * time.Millisecond
	DeleteFadeOut      = 200 * time.Millisecond
	DeleteFinalizeGap  = 50 * time.Millisecond
	CreateFadeIn       = 300 * time.Millisecond
	ZoomFitHeadroom    = 100 * time.Millisecond

	IgnoreSetTTL       = 2 * time.Second
	ImagePollInterval  = 500 * time.Millisecond
	ImagePollMaxTries  = 20
)

// SentinelFile is the persisted snapshot+mapping document, relative to
// the workspace root.
const SentinelFile = ".canvas.json"

// AnnotatedSuffix is appended to an image's stem to form its reserved
// annotated-export filename; such files are never surfaced as shapes.
const AnnotatedSuffix = "_annotated.png"

// PlaceholderImageWidth/Height is the fallback dimension used when
// image decode fails (spec section 7).
const (
	PlaceholderImageWidth  = 300
	PlaceholderImageHeight = 200
)
