// Package transport carries the wire envelope between the sync
// engine and whatever process hosts the 2D editor: message framing
// (newline-delimited JSON over stdio, or Server-Sent Events plus a
// POST command endpoint over HTTP), adapted from a request/response
// MCP transport into the engine's own message vocabulary.
package transport

import "encoding/json"

// MessageType identifies the payload carried by a Message envelope.
type MessageType string

const (
	// MsgCanvasInit carries the full canvas state at startup
	// (equivalent to the restored/bootstrapped snapshot).
	MsgCanvasInit MessageType = "canvas_init"
	// MsgCanvasState is sent over SSE with each user-originated store
	// Delta as payload, and as the empty reply to canvas_save.
	MsgCanvasState MessageType = "canvas_state"
	// MsgCanvasSync carries one CanvasSyncChange (forward path: the
	// editor host telling the engine what a user edit changed).
	MsgCanvasSync MessageType = "canvas_sync"
	// MsgCanvasFSChange carries a raw FSEvent batch, for hosts that
	// want to observe filesystem activity directly.
	MsgCanvasFSChange MessageType = "canvas_fs_change"
	// MsgCanvasSave requests an immediate, non-debounced snapshot
	// flush (forward path: the editor host telling the engine to
	// persist now).
	MsgCanvasSave MessageType = "canvas_save"
	// MsgScreenshotRequest asks the editor host to export an annotated
	// PNG for a set of shape IDs.
	MsgScreenshotRequest MessageType = "screenshot_request"
	// MsgScreenshotResponse carries the resulting PNG, base64-encoded.
	MsgScreenshotResponse MessageType = "screenshot_response"
	// MsgScreenshotError reports a failed screenshot export.
	MsgScreenshotError MessageType = "screenshot_error"
)

// Message is the outer envelope every frame carries, regardless of
// transport. Type selects how Payload should be interpreted.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ScreenshotRequestPayload is MsgScreenshotRequest's payload.
type ScreenshotRequestPayload struct {
	ShapeIDs   []string `json:"shapeIds"`
	PixelRatio float64  `json:"pixelRatio"`
}

// ScreenshotResponsePayload is MsgScreenshotResponse's payload.
type ScreenshotResponsePayload struct {
	PNGBase64 string `json:"pngBase64"`
}

// ScreenshotErrorPayload is MsgScreenshotError's payload.
type ScreenshotErrorPayload struct {
	Message string `json:"message"`
}

// Encode marshals v as a Message's Payload and returns the full
// envelope ready for Write.
func Encode(id string, typ MessageType, v any) (Message, error) {
	if v == nil {
		return Message{ID: id, Type: typ}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{ID: id, Type: typ, Payload: raw}, nil
}
