package domain

// Analysis is the free-form structured content analysis returned by the
// model. Its schema is owned by the analysis prompts.
type Analysis map[string]any

// PipelineInputs are the identity and content fields a run starts from.
type PipelineInputs struct {
	ContentID        string         `json:"video_id"`
	ContentURL       string         `json:"video_url,omitempty"`
	Platform         string         `json:"platform"`
	ContentType      ContentType    `json:"content_type"`
	TextContent      string         `json:"text_content,omitempty"`
	SimulationParams map[string]any `json:"simulation_params,omitempty"`
	UserContext      map[string]any `json:"user_context,omitempty"`
	PlatformMetrics  map[string]any `json:"platform_metrics,omitempty"`

	// PriorAnalysis, when set, is used as the content analysis instead of
	// calling the model, so a known piece of content can be re-simulated.
	PriorAnalysis Analysis `json:"prior_analysis,omitempty"`
}

// PipelineState is the record threaded through every stage. Stages never
// mutate the state they receive; they return a Clone with their own fields
// set. Once a field is populated no later stage may clear it.
type PipelineState struct {
	RunID string `json:"run_id"`
	PipelineInputs

	VideoAnalysis Analysis `json:"video_analysis,omitempty"`
	TextAnalysis  Analysis `json:"text_analysis,omitempty"`

	Personas         []Persona         `json:"personas,omitempty"`
	InitialReactions []InitialReaction `json:"initial_reactions,omitempty"`

	PersonaNetwork *PersonaNetwork `json:"persona_network,omitempty"`

	InteractionResults *InteractionResults `json:"interaction_results,omitempty"`
	InteractionEvents  []InteractionEvent  `json:"interaction_events,omitempty"`

	SecondReactions []SecondReaction `json:"second_reactions,omitempty"`

	FinalMetrics       *FinalMetrics     `json:"final_metrics,omitempty"`
	NodeGraphData      *NodeGraphData    `json:"node_graph_data,omitempty"`
	EngagementTimeline []TimelineEvent   `json:"engagement_timeline,omitempty"`
	ReactionInsights   *ReactionInsights `json:"reaction_insights,omitempty"`

	PlatformPredictions *PlatformPredictions `json:"platform_predictions,omitempty"`

	Status Status   `json:"status"`
	Errors []string `json:"errors"`
}

// NewPipelineState returns the initial state for a run.
func NewPipelineState(runID string, in PipelineInputs) *PipelineState {
	if in.ContentType == "" {
		in.ContentType = ContentVideo
	}
	return &PipelineState{
		RunID:          runID,
		PipelineInputs: in,
		Status:         StatusInitializing,
		Errors:         []string{},
	}
}

// Clone returns a copy of the state whose error list can be appended to
// without affecting the receiver. Stage payloads are shared: they are
// replaced wholesale, never edited in place.
func (s *PipelineState) Clone() *PipelineState {
	c := *s
	c.Errors = append(make([]string, 0, len(s.Errors)+1), s.Errors...)
	return &c
}

// WithError returns a clone carrying msg at the end of its error list.
func (s *PipelineState) WithError(msg string) *PipelineState {
	c := s.Clone()
	c.Errors = append(c.Errors, msg)
	return c
}

// ContentAnalysis returns whichever analysis branch has run.
func (s *PipelineState) ContentAnalysis() Analysis {
	if len(s.VideoAnalysis) > 0 {
		return s.VideoAnalysis
	}
	if len(s.TextAnalysis) > 0 {
		return s.TextAnalysis
	}
	return nil
}

// stateField exposes one append-only field for regression checks.
type stateField struct {
	name    string
	present func(*PipelineState) bool
	restore func(dst, src *PipelineState)
}

var appendOnlyFields = []stateField{
	{"video_analysis", func(s *PipelineState) bool { return s.VideoAnalysis != nil }, func(d, s *PipelineState) { d.VideoAnalysis = s.VideoAnalysis }},
	{"text_analysis", func(s *PipelineState) bool { return s.TextAnalysis != nil }, func(d, s *PipelineState) { d.TextAnalysis = s.TextAnalysis }},
	{"personas", func(s *PipelineState) bool { return s.Personas != nil }, func(d, s *PipelineState) { d.Personas = s.Personas }},
	{"initial_reactions", func(s *PipelineState) bool { return s.InitialReactions != nil }, func(d, s *PipelineState) { d.InitialReactions = s.InitialReactions }},
	{"persona_network", func(s *PipelineState) bool { return s.PersonaNetwork != nil }, func(d, s *PipelineState) { d.PersonaNetwork = s.PersonaNetwork }},
	{"interaction_results", func(s *PipelineState) bool { return s.InteractionResults != nil }, func(d, s *PipelineState) { d.InteractionResults = s.InteractionResults }},
	{"interaction_events", func(s *PipelineState) bool { return s.InteractionEvents != nil }, func(d, s *PipelineState) { d.InteractionEvents = s.InteractionEvents }},
	{"second_reactions", func(s *PipelineState) bool { return s.SecondReactions != nil }, func(d, s *PipelineState) { d.SecondReactions = s.SecondReactions }},
	{"final_metrics", func(s *PipelineState) bool { return s.FinalMetrics != nil }, func(d, s *PipelineState) { d.FinalMetrics = s.FinalMetrics }},
	{"node_graph_data", func(s *PipelineState) bool { return s.NodeGraphData != nil }, func(d, s *PipelineState) { d.NodeGraphData = s.NodeGraphData }},
	{"engagement_timeline", func(s *PipelineState) bool { return s.EngagementTimeline != nil }, func(d, s *PipelineState) { d.EngagementTimeline = s.EngagementTimeline }},
	{"reaction_insights", func(s *PipelineState) bool { return s.ReactionInsights != nil }, func(d, s *PipelineState) { d.ReactionInsights = s.ReactionInsights }},
	{"platform_predictions", func(s *PipelineState) bool { return s.PlatformPredictions != nil }, func(d, s *PipelineState) { d.PlatformPredictions = s.PlatformPredictions }},
}

// RestoreRegressions copies back into next every field that prev had
// populated but next dropped, and returns the names of those fields.
func RestoreRegressions(prev, next *PipelineState) []string {
	var restored []string
	for _, f := range appendOnlyFields {
		if f.present(prev) && !f.present(next) {
			f.restore(next, prev)
			restored = append(restored, f.name)
		}
	}
	if len(next.Errors) < len(prev.Errors) {
		next.Errors = append([]string{}, prev.Errors...)
		restored = append(restored, "errors")
	}
	return restored
}
