package charts

import "github.com/launchforge/statecore/internal/chart"

// Team states.
const (
	TeamForming             = "forming"
	TeamActive              = "active"
	TeamConflictResolution  = "conflict_resolution"
	TeamMediation           = "mediation"
	TeamEscalation          = "escalation"
	TeamPerformanceReview   = "performance_review"
	TeamImprovementPlanning = "improvement_planning"
	TeamRestructuring       = "restructuring"
	TeamDisbanded           = "disbanded"
)

// Team events.
const (
	EvMemberJoined            = "MEMBER_JOINED"
	EvMemberLeft              = "MEMBER_LEFT"
	EvTeamAssembled           = "TEAM_ASSEMBLED"
	EvConflictReported        = "CONFLICT_REPORTED"
	EvConflictResolved        = "CONFLICT_RESOLVED"
	EvMediationRequired       = "MEDIATION_REQUIRED"
	EvMediationResolved       = "MEDIATION_RESOLVED"
	EvEscalationRequired      = "ESCALATION_REQUIRED"
	EvEscalationResolved      = "ESCALATION_RESOLVED"
	EvPerformanceReviewDue    = "PERFORMANCE_REVIEW_DUE"
	EvReviewPassed            = "REVIEW_PASSED"
	EvImprovementRequired     = "IMPROVEMENT_REQUIRED"
	EvImprovementPlanComplete = "IMPROVEMENT_PLAN_COMPLETE"
	EvRestructureRequired     = "RESTRUCTURE_REQUIRED"
	EvRestructureComplete     = "RESTRUCTURE_COMPLETE"
	EvTeamDisbanded           = "DISBAND"
)

// Team context keys.
const (
	KeyTeamMemberCount  = "memberCount"
	KeyConflictCount    = "conflicts"
	KeyPerformanceScore = "performanceScore"
)

// MinTeamMembers is the smallest roster that can leave forming.
const MinTeamMembers = 2

func hasEnoughMembers(ctx chart.Context, _ chart.Event) bool {
	return ctx.Int(KeyTeamMemberCount) >= MinTeamMembers
}

func addMember(ctx chart.Context, _ chart.Event) (chart.Result, error) {
	return chart.Result{Patch: chart.Patch{KeyTeamMemberCount: ctx.Int(KeyTeamMemberCount) + 1}}, nil
}

func removeMember(ctx chart.Context, _ chart.Event) (chart.Result, error) {
	n := ctx.Int(KeyTeamMemberCount) - 1
	if n < 0 {
		n = 0
	}
	return chart.Result{Patch: chart.Patch{KeyTeamMemberCount: n}}, nil
}

func recordConflict(ctx chart.Context, _ chart.Event) (chart.Result, error) {
	return chart.Result{Patch: chart.Patch{KeyConflictCount: ctx.Int(KeyConflictCount) + 1}}, nil
}

func recordReviewScore(_ chart.Context, ev chart.Event) (chart.Result, error) {
	patch := chart.Patch{}
	switch v := ev.Meta["score"].(type) {
	case int:
		patch[KeyPerformanceScore] = v
	case float64:
		patch[KeyPerformanceScore] = int(v)
	}
	return chart.Result{Patch: patch}, nil
}

// TeamChart models team dynamics: formation, the conflict-resolution branch
// through mediation and escalation, and the performance-review branch
// through improvement planning and restructuring. Disbanded is terminal.
func TeamChart() *chart.Chart {
	b := chart.NewBuilder(chart.Team)

	b.Initial(TeamForming)
	b.Terminal(TeamDisbanded)

	b.Guard("hasEnoughMembers", hasEnoughMembers)
	b.Action("addMember", addMember)
	b.Action("removeMember", removeMember)
	b.Action("recordConflict", recordConflict)
	b.Action("recordReviewScore", recordReviewScore)

	b.On(TeamForming, EvMemberJoined).Do("addMember").Stay()
	b.On(TeamForming, EvTeamAssembled).Guard("hasEnoughMembers").Target(TeamActive)

	b.On(TeamActive, EvMemberJoined).Do("addMember").Stay()
	// A departure from an active team is audited and triggers a compliance
	// re-check on the owner, so it commits as a self-transition.
	b.On(TeamActive, EvMemberLeft).Do("removeMember").Target(TeamActive)

	b.On(TeamActive, EvConflictReported).Do("recordConflict").Target(TeamConflictResolution)
	b.On(TeamConflictResolution, EvConflictResolved).Target(TeamActive)
	b.On(TeamConflictResolution, EvMediationRequired).Target(TeamMediation)
	b.On(TeamMediation, EvMediationResolved).Target(TeamActive)
	b.On(TeamMediation, EvEscalationRequired).Target(TeamEscalation)
	b.On(TeamEscalation, EvEscalationResolved).Target(TeamActive)

	b.On(TeamActive, EvPerformanceReviewDue).Target(TeamPerformanceReview)
	b.On(TeamPerformanceReview, EvReviewPassed).Do("recordReviewScore").Target(TeamActive)
	b.On(TeamPerformanceReview, EvImprovementRequired).Target(TeamImprovementPlanning)
	b.On(TeamImprovementPlanning, EvImprovementPlanComplete).Target(TeamActive)
	b.On(TeamPerformanceReview, EvRestructureRequired).Target(TeamRestructuring)
	b.On(TeamRestructuring, EvRestructureComplete).Target(TeamActive)

	for _, from := range []string{TeamForming, TeamActive, TeamEscalation, TeamRestructuring} {
		b.On(from, EvTeamDisbanded).Target(TeamDisbanded)
	}

	return b.MustBuild()
}
