package domain

import "strings"

// Status is the progress marker of a pipeline run.
type Status string

const (
	StatusInitializing Status = "initializing"

	StatusVideoAnalysisComplete Status = "video_analysis_complete"
	StatusVideoAnalysisFailed   Status = "video_analysis_failed"
	StatusTextAnalysisComplete  Status = "text_analysis_complete"
	StatusTextAnalysisFailed    Status = "text_analysis_failed"

	StatusInitialReactionsComplete Status = "initial_reactions_complete"
	StatusInitialReactionsFailed   Status = "initial_reactions_failed"

	StatusNetworkComplete Status = "network_generation_complete"
	StatusNetworkFailed   Status = "network_generation_failed"

	StatusInteractionsComplete Status = "interactions_complete"
	StatusInteractionsFailed   Status = "interactions_failed"

	StatusSecondReactionsComplete Status = "second_reactions_complete"
	StatusSecondReactionsFailed   Status = "second_reactions_failed"

	// StatusComplete is set once results are compiled.
	StatusComplete          Status = "complete"
	StatusCompilationFailed Status = "compilation_failed"

	// StatusCompleted is the terminal status after platform prediction.
	StatusCompleted                Status = "completed"
	StatusPlatformPredictionFailed Status = "platform_prediction_failed"
)

// Failed reports whether the status marks a stage failure.
func (s Status) Failed() bool {
	return strings.HasSuffix(string(s), "_failed")
}

// Terminal reports whether no further stage will run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusPlatformPredictionFailed
}

// Stage names, used in error messages, logs and metrics.
const (
	StageVideoAnalysis      = "video_analysis"
	StageTextAnalysis       = "text_analysis"
	StageInitialReactions   = "initial_reactions"
	StageNetworkGeneration  = "network_generation"
	StageInteractions       = "interactions"
	StageSecondReactions    = "second_reactions"
	StageResultsCompilation = "results_compilation"
	StagePlatformPrediction = "platform_prediction"
)

// ContentType selects the content analysis branch.
type ContentType string

const (
	ContentVideo ContentType = "video"
	ContentText  ContentType = "text"
)
