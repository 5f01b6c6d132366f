package domain

// FinalMetrics are the aggregate engagement figures for a run.
type FinalMetrics struct {
	TotalPersonas             int      `json:"total_personas"`
	TotalViews                int      `json:"total_views"`
	TotalLikes                int      `json:"total_likes"`
	TotalShares               int      `json:"total_shares"`
	TotalComments             int      `json:"total_comments"`
	ViewRate                  float64  `json:"view_rate"`
	EngagementRate            float64  `json:"engagement_rate"`
	ViralCoefficient          float64  `json:"viral_coefficient"`
	PersonasWhoChanged        int      `json:"personas_who_changed"`
	ChangeRate                float64  `json:"change_rate"`
	SocialInfluenceEngagement int      `json:"social_influence_engagement"`
	SocialInfluencePercentage float64  `json:"social_influence_percentage"`
	PeakEngagementTime        float64  `json:"peak_engagement_time"`
	TimeToViral               *float64 `json:"time_to_viral"`
}

// GraphNode is one persona in the visualization projection.
type GraphNode struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Engaged    bool    `json:"engaged"`
	Influenced bool    `json:"influenced"`
	Sentiment  string  `json:"sentiment"`
	IsHub      bool    `json:"is_hub"`
}

// GraphEdge is one network edge in the visualization projection.
type GraphEdge struct {
	Edge
	InteractionOccurred bool `json:"interaction_occurred"`
}

// GraphCluster is one cluster in the visualization projection.
type GraphCluster struct {
	Cluster
	Color string `json:"color"`
}

// NodeGraphData is the node/edge/cluster projection used for rendering.
type NodeGraphData struct {
	Nodes         []GraphNode    `json:"nodes"`
	Edges         []GraphEdge    `json:"edges"`
	Clusters      []GraphCluster `json:"clusters"`
	InfluenceHubs []string       `json:"influence_hubs"`
}

// TimelineEvent is one entry in the chronological engagement timeline.
type TimelineEvent struct {
	Timestamp float64        `json:"timestamp"`
	EventType string         `json:"event_type"`
	PersonaID string         `json:"persona_id"`
	Details   map[string]any `json:"details"`
}

// InfluencedDemographics histograms the personas who changed their reaction.
type InfluencedDemographics struct {
	AgeGroups map[string]int `json:"age_groups"`
	Interests map[string]int `json:"interests"`
}

// Sentiment shift buckets.
const (
	ShiftPositiveToNegative = "positive_to_negative"
	ShiftNegativeToPositive = "negative_to_positive"
	ShiftNeutralToPositive  = "neutral_to_positive"
	ShiftNeutralToNegative  = "neutral_to_negative"
	ShiftOther              = "other"
)

// ReactionInsights are qualitative findings extracted from the reactions.
type ReactionInsights struct {
	MostInfluencedPersonas   []string               `json:"most_influenced_personas"`
	MostResistantPersonas    []string               `json:"most_resistant_personas"`
	InfluencedDemographics   InfluencedDemographics `json:"influenced_demographics"`
	PlatformSpecificPatterns map[string]any         `json:"platform_specific_patterns"`
	SentimentShifts          map[string]int         `json:"sentiment_shifts"`
	AvgSentimentChange       float64                `json:"avg_sentiment_change"`
	ContentStrengths         []string               `json:"content_strengths"`
	ContentWeaknesses        []string               `json:"content_weaknesses"`
}
