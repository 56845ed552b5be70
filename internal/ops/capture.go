package ops

// CaptureStatusOutput describes the capture monitor.
type CaptureStatusOutput struct {
	Enabled bool   `json:"enabled"`
	Running bool   `json:"running"`
	State   string `json:"state"`
	Entries int    `json:"entries"`
}

// CaptureStatus reports whether clipboard changes are being recorded.
func CaptureStatus(h History, c Capture) *CaptureStatusOutput {
	return &CaptureStatusOutput{
		Enabled: c.Enabled(),
		Running: c.Running(),
		State:   c.State().String(),
		Entries: h.Len(),
	}
}

// SetCaptureInput contains parameters for the SetCapture operation.
type SetCaptureInput struct {
	Enabled bool
}

// SetCapture enables or disables capture and returns the new status.
func SetCapture(h History, c Capture, input SetCaptureInput) *CaptureStatusOutput {
	c.SetEnabled(input.Enabled)
	return CaptureStatus(h, c)
}
