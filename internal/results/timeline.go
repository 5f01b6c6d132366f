package results

import (
	"sort"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

// EventView is the timeline event type of an initial view.
const EventView = "view"

// BuildTimeline merges a view entry for every initial reaction that viewed
// with one entry per interaction event, sorted by timestamp. Entries with
// equal timestamps keep their input order.
func BuildTimeline(initial []domain.InitialReaction, events []domain.InteractionEvent) []domain.TimelineEvent {
	timeline := make([]domain.TimelineEvent, 0, len(initial)+len(events))

	for _, r := range initial {
		if !r.WillView {
			continue
		}
		timeline = append(timeline, domain.TimelineEvent{
			Timestamp: r.ReactionTime,
			EventType: EventView,
			PersonaID: r.PersonaID,
			Details: map[string]any{
				"will_like":  r.WillLike,
				"will_share": r.WillShare,
			},
		})
	}

	for _, e := range events {
		kind := e.InteractionType
		if kind == "" {
			kind = "interaction"
		}
		var content any
		if e.Content != nil {
			content = *e.Content
		}
		timeline = append(timeline, domain.TimelineEvent{
			Timestamp: e.Timestamp,
			EventType: kind,
			PersonaID: e.SourcePersonaID,
			Details: map[string]any{
				"target":  e.TargetPersonaID,
				"content": content,
			},
		})
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Timestamp < timeline[j].Timestamp
	})
	return timeline
}
