package analysis

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
)

// VideoStage analyzes state.ContentURL.
type VideoStage struct {
	analyzer *Analyzer
}

// NewVideoStage creates the video analysis stage.
func NewVideoStage(a *Analyzer) *VideoStage {
	return &VideoStage{analyzer: a}
}

func (s *VideoStage) Name() string { return domain.StageVideoAnalysis }

func (s *VideoStage) Process(ctx context.Context, state *domain.PipelineState) ports.StageResult {
	next := state.Clone()

	analysis := state.PriorAnalysis
	if len(analysis) == 0 {
		var err error
		analysis, err = s.analyzer.AnalyzeVideo(ctx, state.ContentURL)
		if err != nil {
			next.Status = domain.StatusVideoAnalysisFailed
			return ports.Fail(next, domain.StageErrorFrom(s.Name(), "Video analysis failed", err))
		}
	}

	s.analyzer.logger.Info("video analysis complete",
		slog.String("run_id", state.RunID),
		slog.String("category", Category(analysis)))

	next.VideoAnalysis = analysis
	next.Status = domain.StatusVideoAnalysisComplete
	return ports.Ok(next)
}

// TextStage analyzes state.TextContent.
type TextStage struct {
	analyzer *Analyzer
}

// NewTextStage creates the text analysis stage.
func NewTextStage(a *Analyzer) *TextStage {
	return &TextStage{analyzer: a}
}

func (s *TextStage) Name() string { return domain.StageTextAnalysis }

func (s *TextStage) Process(ctx context.Context, state *domain.PipelineState) ports.StageResult {
	next := state.Clone()

	analysis := state.PriorAnalysis
	if len(analysis) == 0 {
		var err error
		analysis, err = s.analyzer.AnalyzeText(ctx, state.TextContent)
		if err != nil {
			next.Status = domain.StatusTextAnalysisFailed
			return ports.Fail(next, domain.StageErrorFrom(s.Name(), "Text analysis failed", err))
		}
	}

	s.analyzer.logger.Info("text analysis complete",
		slog.String("run_id", state.RunID),
		slog.String("category", Category(analysis)))

	next.TextAnalysis = analysis
	next.Status = domain.StatusTextAnalysisComplete
	return ports.Ok(next)
}
