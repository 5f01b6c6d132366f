// Package pipeline runs one simulation from its inputs to a terminal state.
//
// # Stage graph
//
//	route(content_type) -> video_analysis | text_analysis
//	  -> initial_reactions -> network_generation -> interactions
//	  -> second_reactions -> results_compilation -> platform_prediction
//
// Every stage receives the previous state and returns a new one together
// with an optional *domain.StageError. The executor appends the error to the
// state's error list and always moves on to the next stage, so a run ends in
// a terminal status even when every model call fails.
//
// # Invariants
//
// State is append-only: a field populated by an earlier stage is never
// cleared by a later one. The executor checks this after each stage and
// restores any regressed field, recording a validation error. A panic in a
// stage is recovered and turned into an internal error with the stage's
// failed status.
//
// Personas are loaded before the first stage. A run whose platform has no
// persona corpus cannot start; that is the only error RunPipeline returns.
package pipeline
