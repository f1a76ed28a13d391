// ABOUTME: Settings record shared by every view of the workflow
// ABOUTME: Seven categories with persisted JSON names and validation tags

package settings

import "slices"

// Settings is the full user-adjustable configuration record.
// JSON names are the persisted wire format and must stay stable.
type Settings struct {
	Experiment    ExperimentSettings   `json:"experiment"`
	Data          DataSettings         `json:"data"`
	Paper         PaperSettings        `json:"paper"`
	Execution     ExecutionSettings    `json:"execution"`
	Reporting     ReportingSettings    `json:"reporting"`
	Notifications NotificationSettings `json:"notifications"`
	Advanced      AdvancedSettings     `json:"advanced"`
}

// ExperimentSettings are defaults for running experiments and analyses.
type ExperimentSettings struct {
	RandomSeed      int      `json:"randomSeed"`
	NumRuns         int      `json:"numRuns" validate:"gte=1"`
	ConfidenceLevel float64  `json:"confidenceLevel" validate:"gt=0,lt=1"`
	Metrics         []string `json:"metrics" validate:"dive,oneof=Accuracy F1 BLEU ROC-AUC"`
	SandboxMode     bool     `json:"sandboxMode"`
}

// DataSettings control where data comes from and how it is preprocessed.
type DataSettings struct {
	Source         string                `json:"source" validate:"oneof=upload synthetic"`
	HashingEnabled bool                  `json:"hashingEnabled"`
	Preprocessing  PreprocessingSettings `json:"preprocessing"`
}

// PreprocessingSettings are text preprocessing toggles.
type PreprocessingSettings struct {
	Normalize       bool `json:"normalize"`
	Tokenize        bool `json:"tokenize"`
	Lowercase       bool `json:"lowercase"`
	RemoveStopwords bool `json:"removeStopwords"`
}

// PaperSettings control paper input and claim/hypothesis extraction.
type PaperSettings struct {
	InputFormat      string             `json:"inputFormat" validate:"oneof=pdf arxiv text"`
	ClaimSensitivity float64            `json:"claimSensitivity" validate:"gte=0,lte=1"`
	Hypothesis       HypothesisSettings `json:"hypothesis"`
}

// HypothesisSettings are thresholds used when testing extracted hypotheses.
type HypothesisSettings struct {
	Threshold      float64 `json:"threshold" validate:"gte=0,lte=1"`
	MinEffectSize  float64 `json:"minEffectSize" validate:"gte=0"`
	NullAssumption string  `json:"nullAssumption" validate:"oneof=two_tailed one_tailed"`
}

// ExecutionSettings are resource limits for experiment execution.
type ExecutionSettings struct {
	CPULimit       int    `json:"cpuLimit" validate:"gte=0"`
	GPULimit       int    `json:"gpuLimit" validate:"gte=0"`
	TimeoutMinutes int    `json:"timeoutMinutes" validate:"gte=1"`
	ParallelRuns   int    `json:"parallelRuns" validate:"gte=1"`
	LoggingLevel   string `json:"loggingLevel" validate:"oneof=error warn info debug"`
}

// ReportingSettings control generated report output.
type ReportingSettings struct {
	Format       string `json:"format" validate:"oneof=html pdf"`
	IncludeCode  bool   `json:"includeCode"`
	IncludePlots bool   `json:"includePlots"`
	ArtifactDir  string `json:"artifactDir" validate:"required"`
}

// NotificationSettings are alert toggles.
type NotificationSettings struct {
	OnCompletion bool `json:"onCompletion"`
	OnErrors     bool `json:"onErrors"`
}

// AdvancedSettings are agent and vector-store parameters.
type AdvancedSettings struct {
	AgentTimeoutSeconds int                 `json:"agentTimeoutSeconds" validate:"gte=1"`
	CustomAgentPrompt   string              `json:"customAgentPrompt"`
	VectorStore         VectorStoreSettings `json:"vectorStore"`
}

// VectorStoreSettings select the vector index backend.
type VectorStoreSettings struct {
	Provider  string `json:"provider" validate:"required"`
	IndexPath string `json:"indexPath" validate:"required"`
}

// Clone returns a deep copy. Metrics is the only reference-typed field.
func (s Settings) Clone() Settings {
	out := s
	out.Experiment.Metrics = slices.Clone(s.Experiment.Metrics)
	return out
}

// Equal reports whether two snapshots hold the same values.
func (s Settings) Equal(other Settings) bool {
	ea, eb := s.Experiment, other.Experiment
	if ea.RandomSeed != eb.RandomSeed ||
		ea.NumRuns != eb.NumRuns ||
		ea.ConfidenceLevel != eb.ConfidenceLevel ||
		ea.SandboxMode != eb.SandboxMode ||
		!slices.Equal(ea.Metrics, eb.Metrics) {
		return false
	}
	return s.Data == other.Data &&
		s.Paper == other.Paper &&
		s.Execution == other.Execution &&
		s.Reporting == other.Reporting &&
		s.Notifications == other.Notifications &&
		s.Advanced == other.Advanced
}
