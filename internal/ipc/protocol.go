// Package ipc implements the single-instance control socket: JSON lines
// over a unix socket in XDG_RUNTIME_DIR.
package ipc

// Request is one control command sent to the running instance. Path is
// only set for the import command.
type Request struct {
	Command string `json:"command"`
	Path    string `json:"path,omitempty"`
}

// Response reports command outcome plus the observable pipeline state.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
