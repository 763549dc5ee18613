// Package ipc carries control commands from `voxdict toggle` and friends to
// the running daemon over a unix socket, one JSON object per line.
package ipc

const (
	CommandToggle = "toggle"
	CommandCancel = "cancel"
	CommandStatus = "status"
)

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
