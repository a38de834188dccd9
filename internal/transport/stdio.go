package transport

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
)

// Handler processes one inbound Message and optionally returns an
// outbound Message to send back (e.g. a canvas_save ack).
type Handler func(msg *Message) *Message

// RunStdio frames Messages as newline-delimited JSON over stdin/stdout
// until EOF or a read error. Adapted from the newline-delimited JSON
// stdio loop pattern; only the envelope vocabulary differs.
func RunStdio(handler Handler) {
	slog.Info("transport: starting stdio listener", "component", "transport")
	reader := bufio.NewReader(os.Stdin)
	writer := os.Stdout

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				slog.Error("transport: stdin read failed", "component", "transport", "error", err)
			} else {
				slog.Info("transport: EOF on stdin, stopping", "component", "transport")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			slog.Error("transport: malformed message", "component", "transport", "error", err, "raw", string(line))
			continue
		}

		slog.Debug("transport: received message", "component", "transport", "type", msg.Type, "id", msg.ID)
		if resp := handler(&msg); resp != nil {
			if err := writeMessage(writer, resp); err != nil {
				slog.Error("transport: write failed", "component", "transport", "error", err)
			}
		}
	}
}

func writeMessage(w io.Writer, msg *Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}
