package jobs

import "time"

// Status represents the lifecycle of a denoise job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Result carries the quality metrics computed for a completed job.
type Result struct {
	NoiseReductionDB  float64 `json:"noise_reduction_db"`
	SNRImprovementDB  float64 `json:"snr_improvement_db"`
	ConfidenceScore   float64 `json:"confidence_score"`
	ProcessingTime    float64 `json:"processing_time"`
	Duration          float64 `json:"duration"`
	SampleRate        int     `json:"sample_rate"`
	InputSpectrogram  string  `json:"input_spectrogram,omitempty"`
	OutputSpectrogram string  `json:"output_spectrogram,omitempty"`
}

// Job is a snapshot of one denoise request as tracked by the registry.
type Job struct {
	ID        string
	Filename  string
	Status    Status
	Progress  float64
	Message   string
	Error     string
	Result    *Result
	CreatedAt time.Time
	UpdatedAt time.Time
	// CompletedAt is zero until the job reaches a terminal state.
	CompletedAt time.Time
}
