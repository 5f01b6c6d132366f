package domain

import "math"

// Sentiment labels produced by the reaction stages.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// InitialReaction is a persona's engagement judgment before any social signal.
type InitialReaction struct {
	PersonaID             string  `json:"persona_id"`
	WillView              bool    `json:"will_view"`
	WillLike              bool    `json:"will_like"`
	WillShare             bool    `json:"will_share"`
	WillComment           bool    `json:"will_comment"`
	EngagementProbability float64 `json:"engagement_probability"`
	ReactionTime          float64 `json:"reaction_time"`
	Reasoning             string  `json:"reasoning"`
	Sentiment             string  `json:"sentiment"`
	CommentText           *string `json:"comment_text,omitempty"`
}

// Engaged reports whether the reaction includes a like, share or comment.
func (r InitialReaction) Engaged() bool {
	return r.WillLike || r.WillShare || r.WillComment
}

// Normalize clamps scalar fields into their domain ranges and fills a
// missing sentiment.
func (r InitialReaction) Normalize() InitialReaction {
	r.EngagementProbability = Clamp01(r.EngagementProbability)
	if r.ReactionTime < 0 {
		r.ReactionTime = 0
	}
	if r.Sentiment == "" {
		r.Sentiment = SentimentNeutral
	}
	return r
}

// SecondReaction is a persona's engagement judgment after exposure to
// interaction events from the network.
type SecondReaction struct {
	PersonaID          string   `json:"persona_id"`
	WillView           bool     `json:"will_view"`
	WillLike           bool     `json:"will_like"`
	WillShare          bool     `json:"will_share"`
	WillComment        bool     `json:"will_comment"`
	InfluenceLevel     float64  `json:"influence_level"`
	ChangedFromInitial bool     `json:"changed_from_initial"`
	SocialProofFactors []string `json:"social_proof_factors"`
	Reasoning          string   `json:"reasoning"`
	UpdatedSentiment   string   `json:"updated_sentiment"`
	CommentText        *string  `json:"comment_text,omitempty"`

	InitialEngagementProbability float64 `json:"initial_engagement_probability"`
	FinalEngagementProbability   float64 `json:"final_engagement_probability"`
}

// Engaged reports whether the reaction includes a like, share or comment.
func (r SecondReaction) Engaged() bool {
	return r.WillLike || r.WillShare || r.WillComment
}

// Normalize clamps scalar fields into their domain ranges.
func (r SecondReaction) Normalize() SecondReaction {
	r.InfluenceLevel = Clamp01(r.InfluenceLevel)
	r.InitialEngagementProbability = Clamp01(r.InitialEngagementProbability)
	r.FinalEngagementProbability = Clamp01(r.FinalEngagementProbability)
	if r.UpdatedSentiment == "" {
		r.UpdatedSentiment = SentimentNeutral
	}
	if r.SocialProofFactors == nil {
		r.SocialProofFactors = []string{}
	}
	return r
}

// AsSecond projects an initial reaction into the second-round shape. It is
// used when compiling results without a second round.
func (r InitialReaction) AsSecond() SecondReaction {
	return SecondReaction{
		PersonaID:                    r.PersonaID,
		WillView:                     r.WillView,
		WillLike:                     r.WillLike,
		WillShare:                    r.WillShare,
		WillComment:                  r.WillComment,
		SocialProofFactors:           []string{},
		Reasoning:                    r.Reasoning,
		UpdatedSentiment:             r.Sentiment,
		CommentText:                  r.CommentText,
		InitialEngagementProbability: r.EngagementProbability,
		FinalEngagementProbability:   r.EngagementProbability,
	}
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Round rounds v to places decimal places, half away from zero.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
