package tracking

// TuningParams holds the real-time adjustable tracking parameters.
// These can be modified via the tuning API without restarting.
type TuningParams struct {
	// Steering
	Throttle float64 `json:"throttle"` // Drive speed while armed (0-1)
	Mode     Mode    `json:"mode"`     // "boresight" or "laser"

	// Detection
	PeakThreshold float64 `json:"peak_threshold"` // Gate weak peaks; negative clears the gate

	// Projection
	CameraHeight float64 `json:"camera_height"` // Feet above the ground
	HFovHalf     float64 `json:"hfov_half"`     // Degrees
	VFovHalf     float64 `json:"vfov_half"`     // Degrees
}

// GetTuningParams returns current tuning parameters from the tracker.
func (t *Tracker) GetTuningParams() TuningParams {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return TuningParams{
		Throttle:      t.planner.Throttle,
		Mode:          t.config.Mode,
		PeakThreshold: float64(t.config.PeakThreshold),
		CameraHeight:  t.config.CameraHeight,
		HFovHalf:      t.config.HFovHalf,
		VFovHalf:      t.config.VFovHalf,
	}
}

// SetTuningParams updates tuning parameters at runtime.
// Only non-zero values are applied.
func (t *Tracker) SetTuningParams(params TuningParams) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if params.Throttle > 0 {
		t.config.Throttle = clamp(params.Throttle, 0.0, 1.0)
		t.planner.Throttle = t.config.Throttle
	}
	switch params.Mode {
	case ModeBoresight, ModeLaser:
		t.config.Mode = params.Mode
	}

	if params.PeakThreshold != 0 {
		th := float32(params.PeakThreshold)
		if th < 0 {
			th = 0
		}
		t.config.PeakThreshold = th
		t.sphero.threshold = th
		t.laser.threshold = th
	}

	if params.CameraHeight > 0 {
		t.config.CameraHeight = params.CameraHeight
		t.pose.Height = params.CameraHeight
	}
	if params.HFovHalf > 0 {
		t.config.HFovHalf = clamp(params.HFovHalf, 1, 89)
	}
	if params.VFovHalf > 0 {
		t.config.VFovHalf = clamp(params.VFovHalf, 1, 89)
	}
	t.projector = NewGroundProjector(t.screen, t.config.HFovHalf, t.config.VFovHalf)

	t.logger.Info("tuning updated",
		"throttle", t.config.Throttle,
		"mode", t.config.Mode,
		"peak_threshold", t.config.PeakThreshold,
		"camera_height", t.config.CameraHeight)
}
