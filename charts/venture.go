package charts

import "github.com/launchforge/statecore/internal/chart"

// Venture states.
const (
	VentureIdeation           = "ideation"
	VentureIdeaReview         = "idea_review"
	VentureTeamBuilding       = "team_building"
	VentureMarketValidation   = "market_validation"
	VenturePivotRequired      = "pivot_required"
	VentureProductDevelopment = "product_development"
	VentureBetaTesting        = "beta_testing"
	VentureFunding            = "funding"
	VentureLaunch             = "launch"
	VentureGrowth             = "growth"
	VentureScaling            = "scaling"
	VentureMature             = "mature"
	VentureExit               = "exit"
	VentureIPO                = "ipo"
	VentureAcquisition        = "acquisition"
	VentureAbandoned          = "abandoned"
	VentureRejected           = "rejected"
)

// Venture events.
const (
	EvIdeaSubmitted       = "IDEA_SUBMITTED"
	EvIdeaApproved        = "IDEA_APPROVED"
	EvIdeaRejected        = "IDEA_REJECTED"
	EvTeamMemberAdded     = "TEAM_MEMBER_ADDED"
	EvTeamComplete        = "TEAM_COMPLETE"
	EvValidationPassed    = "VALIDATION_PASSED"
	EvValidationFailed    = "VALIDATION_FAILED"
	EvPivotComplete       = "PIVOT_COMPLETE"
	EvMVPReady            = "MVP_READY"
	EvBetaComplete        = "BETA_COMPLETE"
	EvFundingSecured      = "FUNDING_SECURED"
	EvLaunched            = "LAUNCHED"
	EvGrowthTargetMet     = "GROWTH_TARGET_MET"
	EvScaleAchieved       = "SCALE_ACHIEVED"
	EvExitInitiated       = "EXIT_INITIATED"
	EvIPOFiled            = "IPO_FILED"
	EvAcquisitionAccepted = "ACQUISITION_ACCEPTED"
	EvVentureAbandoned    = "ABANDONED"
)

// Venture context keys.
const (
	KeyMemberCount      = "memberCount"
	KeyTeamMembers      = "teamMembers"
	KeyRequiredTeamSize = "requiredTeamSize"
	KeyPivotCount       = "pivotCount"
	KeyFundingRaised    = "fundingRaised"
)

// DefaultTeamSize is the member count that completes team building when the
// context does not override requiredTeamSize.
const DefaultTeamSize = 3

func requiredTeamSize(ctx chart.Context) int {
	if n := ctx.Int(KeyRequiredTeamSize); n > 0 {
		return n
	}
	return DefaultTeamSize
}

// teamIncomplete admits a member when the team still has open seats after
// this addition.
func teamIncomplete(ctx chart.Context, _ chart.Event) bool {
	return ctx.Int(KeyMemberCount)+1 < requiredTeamSize(ctx)
}

// completesTeam admits the member that fills the last seat.
func completesTeam(ctx chart.Context, _ chart.Event) bool {
	return ctx.Int(KeyMemberCount)+1 >= requiredTeamSize(ctx)
}

func addTeamMember(ctx chart.Context, ev chart.Event) (chart.Result, error) {
	patch := chart.Patch{KeyMemberCount: ctx.Int(KeyMemberCount) + 1}
	if name, _ := ev.Meta["member"].(string); name != "" {
		patch[KeyTeamMembers] = append(ctx.Strings(KeyTeamMembers), name)
	}
	return chart.Result{Patch: patch}, nil
}

// announceTeamComplete fires the completion event once the final seat is
// filled; the chart routes it into market validation.
func announceTeamComplete(_ chart.Context, _ chart.Event) (chart.Result, error) {
	return chart.Result{Emit: []chart.Event{chart.NewEvent(EvTeamComplete, nil)}}, nil
}

func recordIdea(_ chart.Context, ev chart.Event) (chart.Result, error) {
	patch := chart.Patch{}
	if title, _ := ev.Meta["title"].(string); title != "" {
		patch["ideaTitle"] = title
	}
	return chart.Result{Patch: patch}, nil
}

func incrementPivots(ctx chart.Context, _ chart.Event) (chart.Result, error) {
	return chart.Result{Patch: chart.Patch{KeyPivotCount: ctx.Int(KeyPivotCount) + 1}}, nil
}

func recordFunding(ctx chart.Context, ev chart.Event) (chart.Result, error) {
	amount := 0
	switch v := ev.Meta["amount"].(type) {
	case int:
		amount = v
	case float64:
		amount = int(v)
	}
	return chart.Result{Patch: chart.Patch{KeyFundingRaised: ctx.Int(KeyFundingRaised) + amount}}, nil
}

// VentureChart models a venture's lifecycle from ideation to exit. The
// abandoned and rejected failure states are reachable from every working
// stage.
func VentureChart() *chart.Chart {
	b := chart.NewBuilder(chart.Venture)

	b.Initial(VentureIdeation)
	b.Terminal(VentureExit, VentureIPO, VentureAcquisition, VentureAbandoned, VentureRejected)

	b.Guard("teamIncomplete", teamIncomplete)
	b.Guard("completesTeam", completesTeam)
	b.Action("recordIdea", recordIdea)
	b.Action("addTeamMember", addTeamMember)
	b.Action("announceTeamComplete", announceTeamComplete)
	b.Action("incrementPivots", incrementPivots)
	b.Action("recordFunding", recordFunding)

	b.On(VentureIdeation, EvIdeaSubmitted).Do("recordIdea").Target(VentureIdeaReview)
	b.On(VentureIdeaReview, EvIdeaApproved).Target(VentureTeamBuilding)
	b.On(VentureIdeaReview, EvIdeaRejected).Target(VentureRejected)

	// Early additions stay internal; the member that fills the last seat
	// commits an audited self-transition and fires TEAM_COMPLETE.
	b.On(VentureTeamBuilding, EvTeamMemberAdded).Guard("teamIncomplete").Do("addTeamMember").Stay()
	b.On(VentureTeamBuilding, EvTeamMemberAdded).Guard("completesTeam").
		Do("addTeamMember", "announceTeamComplete").Target(VentureTeamBuilding)
	b.On(VentureTeamBuilding, EvTeamComplete).Target(VentureMarketValidation)

	b.On(VentureMarketValidation, EvValidationPassed).Target(VentureProductDevelopment)
	b.On(VentureMarketValidation, EvValidationFailed).Target(VenturePivotRequired)
	b.On(VenturePivotRequired, EvPivotComplete).Do("incrementPivots").Target(VentureMarketValidation)

	b.On(VentureProductDevelopment, EvMVPReady).Target(VentureBetaTesting)
	b.On(VentureBetaTesting, EvBetaComplete).Target(VentureFunding)
	b.On(VentureFunding, EvFundingSecured).Do("recordFunding").Target(VentureLaunch)
	b.On(VentureLaunch, EvLaunched).Target(VentureGrowth)
	b.On(VentureGrowth, EvGrowthTargetMet).Target(VentureScaling)
	b.On(VentureScaling, EvScaleAchieved).Target(VentureMature)

	b.On(VentureMature, EvExitInitiated).Target(VentureExit)
	b.On(VentureMature, EvIPOFiled).Target(VentureIPO)
	b.On(VentureMature, EvAcquisitionAccepted).Target(VentureAcquisition)

	for _, from := range []string{
		VentureIdeation, VentureIdeaReview, VentureTeamBuilding, VentureMarketValidation,
		VenturePivotRequired, VentureProductDevelopment, VentureBetaTesting, VentureFunding,
		VentureLaunch, VentureGrowth, VentureScaling,
	} {
		b.On(from, EvVentureAbandoned).Target(VentureAbandoned)
	}

	return b.MustBuild()
}
