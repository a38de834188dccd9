// Package canvasmodel defines the shared data model between the
// filesystem side and the editor side of the sync engine: shape and
// path identifiers, the normalized FSEvent and CanvasSyncChange wire
// shapes, and the narrow Store interface the editor library sits
// behind. Nothing in this package touches a filesystem or a real
// editor; it is pure data plus the boundary interface.
package canvasmodel

import "strings"

// ShapeID is an opaque identifier minted by the editor library, e.g.
// "shape:<uuid>". The core never interprets its structure.
type ShapeID string

// RelPath is a POSIX-style path relative to the workspace root. It
// never has a leading "/" and never contains "..".
type RelPath string

// PathKind classifies a RelPath by extension for canvas visibility.
type PathKind int

const (
	// KindOpaque paths are not represented on the canvas.
	KindOpaque PathKind = iota
	KindText
	KindImage
	// KindFrame is an extensionless, unnested directory.
	KindFrame
)

var textExtensions = map[string]bool{".txt": true, ".md": true}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".gif": true, ".svg": true,
}

// Ext returns the lowercased file extension including the leading dot,
// or "" if the path has none.
func (p RelPath) Ext() string {
	s := string(p)
	i := strings.LastIndexByte(s, '.')
	slash := strings.LastIndexByte(s, '/')
	if i <= slash {
		return ""
	}
	return strings.ToLower(s[i:])
}

// Base returns the final path segment (directory-stripped).
func (p RelPath) Base() string {
	s := string(p)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Dir returns the parent directory component, or "" at the root.
func (p RelPath) Dir() string {
	s := string(p)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[:i]
	}
	return ""
}

// Stem returns the base name without its extension.
func (p RelPath) Stem() string {
	base := p.Base()
	ext := RelPath(base).Ext()
	return strings.TrimSuffix(base, ext)
}

// IsDirectory reports whether the path is an extensionless, unnested
// candidate frame directory (heuristic; callers with authoritative
// isDirectory info from the filesystem should prefer that).
func (p RelPath) IsDirectory() bool {
	return p.Ext() == ""
}

// Kind classifies the path per the frame/text/image/opaque rule in
// spec section 3. A directory-flagged path is always KindFrame unless
// it is nested (more than zero "/" below the workspace root), in which
// case it is outside the one-level frame model and treated as opaque.
func (p RelPath) Kind(isDirectory bool) PathKind {
	if isDirectory {
		if strings.Count(string(p), "/") > 0 {
			return KindOpaque
		}
		return KindFrame
	}
	if textExtensions[p.Ext()] {
		return KindText
	}
	if imageExtensions[p.Ext()] {
		return KindImage
	}
	return KindOpaque
}

// ShapeKind is the canvas-visible subset of editor shape types that
// participate in the path bijection.
type ShapeKind int

const (
	ShapeNamedText ShapeKind = iota
	ShapeImage
	ShapeFrame
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeNamedText:
		return "NamedText"
	case ShapeImage:
		return "Image"
	case ShapeFrame:
		return "Frame"
	default:
		return "Unknown"
	}
}

// KindAgrees reports whether a shape kind and a path kind are a legal
// pairing under the PathMap's kind-agreement invariant.
func (k ShapeKind) KindAgrees(pk PathKind) bool {
	switch k {
	case ShapeNamedText:
		return pk == KindText
	case ShapeImage:
		return pk == KindImage
	case ShapeFrame:
		return pk == KindFrame
	default:
		return false
	}
}

// NameToTextPath renders a text shape's display name as a ".txt"
// relative path, optionally nested under a parent frame.
func NameToTextPath(parentFrame, name string) RelPath {
	if parentFrame == "" {
		return RelPath(name + ".txt")
	}
	return RelPath(parentFrame + "/" + name + ".txt")
}

// FSAction is the normalized action classification for a filesystem
// notification.
type FSAction int

const (
	FSCreated FSAction = iota
	FSModified
	FSDeleted
)

func (a FSAction) String() string {
	switch a {
	case FSCreated:
		return "created"
	case FSModified:
		return "modified"
	case FSDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FSEvent is the normalized, enriched change notification the
// WorkspaceWatcher emits.
type FSEvent struct {
	Action      FSAction
	Path        RelPath
	IsDirectory bool
	Timestamp   int64 // unix millis
	Size        *int64
	MTimeMs     *int64
	Content     *string // populated only for text files on created/modified
}

// KnownMeta is the per-path metadata the move detector consults.
type KnownMeta struct {
	Size        *int64
	MTimeMs     *int64
	Content     *string
	IsDirectory bool
}

// CanvasAction is the forward-path change a user edit resolves to.
type CanvasAction int

const (
	CanvasCreate CanvasAction = iota
	CanvasUpdate
	CanvasRename
	CanvasMove
	CanvasDelete
)

func (a CanvasAction) String() string {
	switch a {
	case CanvasCreate:
		return "create"
	case CanvasUpdate:
		return "update"
	case CanvasRename:
		return "rename"
	case CanvasMove:
		return "move"
	case CanvasDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// CanvasSyncChange is the forward-path wire shape: what the controller
// asks the WorkspaceWatcher to do to the filesystem in response to a
// user edit.
type CanvasSyncChange struct {
	Action    CanvasAction
	ShapeType ShapeKind
	Path      RelPath
	OldPath   RelPath // set for Rename/Move
	Content   *string // set for Create/Update of text shapes
}
