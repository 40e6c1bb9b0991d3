package charts

import (
	"github.com/launchforge/statecore/internal/chart"
	"github.com/launchforge/statecore/internal/coordinate"
)

// userID resolves the owning user from a source context.
func userID(src chart.Context) string {
	return src.String(KeyUserID)
}

// FounderAgreementID derives the legal-document id bootstrapped for a
// venture.
func FounderAgreementID(ventureID string) string {
	return ventureID + "-founder-agreement"
}

// DefaultRules is the static cross-machine coordination table. It is loaded
// once at startup and immutable at runtime.
//
// The linkages mirror how the entities depend on each other: a document
// becoming effective feeds the owner's compliance score and journey
// milestones, a venture entering review marks the founder's first-venture
// milestone and bootstraps its founder agreement, billing changes move the
// journey between member and subscriber, and a team restructuring or a
// member departure forces a compliance re-check on the team owner.
func DefaultRules() []coordinate.Rule {
	return []coordinate.Rule{
		{
			SourceType:  chart.LegalDocument,
			SourceState: DocEffective,
			TargetType:  chart.Compliance,
			TargetID:    userID,
			Build: func(src chart.Context) chart.Event {
				return chart.NewEvent(EvDocumentSigned, map[string]any{
					"documentKind": src.String(KeyDocumentKind),
					KeyVentureID:   src.String(KeyVentureID),
				})
			},
			Seed: func(src chart.Context) chart.Context {
				return chart.Context{KeyUserID: src.String(KeyUserID)}
			},
		},
		{
			SourceType:  chart.LegalDocument,
			SourceState: DocEffective,
			TargetType:  chart.UserJourney,
			TargetID:    userID,
			Build: func(src chart.Context) chart.Event {
				return chart.NewEvent(EvMilestoneReached, map[string]any{
					"milestone": MilestoneDocumentSigned,
				})
			},
			Seed: func(src chart.Context) chart.Context {
				return chart.Context{KeyUserID: src.String(KeyUserID)}
			},
		},
		{
			SourceType:  chart.Venture,
			SourceState: VentureIdeaReview,
			TargetType:  chart.UserJourney,
			TargetID:    userID,
			Build: func(src chart.Context) chart.Event {
				return chart.NewEvent(EvMilestoneReached, map[string]any{
					"milestone": MilestoneFirstVenture,
				})
			},
			Seed: func(src chart.Context) chart.Context {
				return chart.Context{KeyUserID: src.String(KeyUserID)}
			},
		},
		{
			// An approved idea gets its founder agreement drafted.
			SourceType:  chart.Venture,
			SourceState: VentureTeamBuilding,
			TargetType:  chart.LegalDocument,
			TargetID: func(src chart.Context) string {
				v := src.String(KeyVentureID)
				if v == "" {
					return ""
				}
				return FounderAgreementID(v)
			},
			Build: func(src chart.Context) chart.Event {
				return chart.NewEvent(EvVentureLinked, map[string]any{
					KeyVentureID: src.String(KeyVentureID),
					"kind":       "founder_agreement",
				})
			},
			Seed: func(src chart.Context) chart.Context {
				return chart.Context{
					KeyUserID:    src.String(KeyUserID),
					KeyVentureID: src.String(KeyVentureID),
				}
			},
		},
		{
			SourceType:  chart.Subscription,
			SourceState: SubActive,
			TargetType:  chart.UserJourney,
			TargetID:    userID,
			Build: func(src chart.Context) chart.Event {
				return chart.NewEvent(EvSubscriptionActivated, map[string]any{
					KeyPlan: src.String(KeyPlan),
				})
			},
			Seed: func(src chart.Context) chart.Context {
				return chart.Context{KeyUserID: src.String(KeyUserID)}
			},
		},
		{
			SourceType:  chart.Subscription,
			SourceState: SubCancelled,
			TargetType:  chart.UserJourney,
			TargetID:    userID,
			Build: func(src chart.Context) chart.Event {
				return chart.NewEvent(EvSubscriptionCancelled, nil)
			},
			Seed: func(src chart.Context) chart.Context {
				return chart.Context{KeyUserID: src.String(KeyUserID)}
			},
		},
		{
			SourceType:  chart.Team,
			SourceState: TeamRestructuring,
			TargetType:  chart.Compliance,
			TargetID:    userID,
			Build: func(src chart.Context) chart.Event {
				return chart.NewEvent(EvComplianceCheckRequired, map[string]any{
					"reason": "team_restructuring",
				})
			},
			Seed: func(src chart.Context) chart.Context {
				return chart.Context{KeyUserID: src.String(KeyUserID)}
			},
		},
		{
			SourceType:  chart.Team,
			SourceState: TeamActive,
			SourceEvent: EvMemberLeft,
			TargetType:  chart.Compliance,
			TargetID:    userID,
			Build: func(src chart.Context) chart.Event {
				return chart.NewEvent(EvComplianceCheckRequired, map[string]any{
					"reason": "member_departure",
				})
			},
			Seed: func(src chart.Context) chart.Context {
				return chart.Context{KeyUserID: src.String(KeyUserID)}
			},
		},
	}
}
