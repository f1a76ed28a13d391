// ABOUTME: Compiled-in default settings and the versioned storage key
// ABOUTME: Defaults returns a fresh copy so callers cannot alias shared state

package settings

// StorageKey is the durable storage key for the serialized snapshot.
const StorageKey = "mlra_settings_v1"

// Metric names selectable for experiments.
const (
	MetricAccuracy = "Accuracy"
	MetricF1       = "F1"
	MetricBLEU     = "BLEU"
	MetricROCAUC   = "ROC-AUC"
)

// Defaults returns the compiled-in default record. Each call builds a new value.
func Defaults() Settings {
	return Settings{
		Experiment: ExperimentSettings{
			RandomSeed:      42,
			NumRuns:         3,
			ConfidenceLevel: 0.95,
			Metrics:         []string{MetricAccuracy, MetricF1},
			SandboxMode:     true,
		},
		Data: DataSettings{
			Source:         "upload",
			HashingEnabled: true,
			Preprocessing: PreprocessingSettings{
				Normalize:       true,
				Tokenize:        true,
				Lowercase:       true,
				RemoveStopwords: false,
			},
		},
		Paper: PaperSettings{
			InputFormat:      "pdf",
			ClaimSensitivity: 0.6,
			Hypothesis: HypothesisSettings{
				Threshold:      0.5,
				MinEffectSize:  0.2,
				NullAssumption: "two_tailed",
			},
		},
		Execution: ExecutionSettings{
			CPULimit:       4,
			GPULimit:       1,
			TimeoutMinutes: 60,
			ParallelRuns:   2,
			LoggingLevel:   "info",
		},
		Reporting: ReportingSettings{
			Format:       "html",
			IncludeCode:  false,
			IncludePlots: true,
			ArtifactDir:  "./artifacts",
		},
		Notifications: NotificationSettings{
			OnCompletion: true,
			OnErrors:     true,
		},
		Advanced: AdvancedSettings{
			AgentTimeoutSeconds: 120,
			CustomAgentPrompt:   "",
			VectorStore: VectorStoreSettings{
				Provider:  "faiss",
				IndexPath: "./vector_index",
			},
		},
	}
}
