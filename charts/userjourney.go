package charts

import "github.com/launchforge/statecore/internal/chart"

// UserJourney states.
const (
	JourneyGuest               = "guest"
	JourneyRegistering         = "registering"
	JourneyOnboarding          = "onboarding"
	JourneyMember              = "member"
	JourneySubscribing         = "subscribing"
	JourneySubscriber          = "subscriber"
	JourneyPowerUserEvaluation = "power_user_evaluation"
	JourneyPowerUser           = "power_user"
	JourneyAdminEvaluation     = "admin_evaluation"
	JourneyAdmin               = "admin"
	JourneySuspended           = "suspended"
	JourneyTerminated          = "terminated"
)

// UserJourney events.
const (
	EvRegister              = "REGISTER"
	EvRegistrationComplete  = "REGISTRATION_COMPLETE"
	EvOnboardingComplete    = "ONBOARDING_COMPLETE"
	EvSubscriptionRequested = "SUBSCRIPTION_REQUESTED"
	EvSubscriptionActivated = "SUBSCRIPTION_ACTIVATED"
	EvSubscriptionCancelled = "SUBSCRIPTION_CANCELLED"
	EvMilestoneReached      = "MILESTONE_REACHED"
	EvPowerUserNominated    = "POWER_USER_NOMINATED"
	EvPowerUserApproved     = "POWER_USER_APPROVED"
	EvPowerUserRejected     = "POWER_USER_REJECTED"
	EvAdminNominated        = "ADMIN_NOMINATED"
	EvAdminApproved         = "ADMIN_APPROVED"
	EvAdminRejected         = "ADMIN_REJECTED"
	EvSuspendUser           = "SUSPEND"
	EvReinstateUser         = "REINSTATE"
	EvTerminateUser         = "TERMINATE"
)

// RBAC levels recorded in the journey context under KeyRBACLevel.
const (
	KeyRBACLevel  = "rbacLevel"
	KeyMilestones = "milestones"

	RBACGuest      = "guest"
	RBACMember     = "member"
	RBACSubscriber = "subscriber"
	RBACPowerUser  = "power_user"
	RBACAdmin      = "admin"
)

// Milestones gating role upgrades.
const (
	MilestoneProfileComplete = "profile_complete"
	MilestoneFirstVenture    = "first_venture"
	MilestoneDocumentSigned  = "document_signed"
)

// canUpgradeToPowerUser requires the three core milestones to be present.
func canUpgradeToPowerUser(ctx chart.Context, _ chart.Event) bool {
	return ctx.HasString(KeyMilestones, MilestoneProfileComplete) &&
		ctx.HasString(KeyMilestones, MilestoneFirstVenture) &&
		ctx.HasString(KeyMilestones, MilestoneDocumentSigned)
}

func setRBAC(level string) chart.Action {
	return func(_ chart.Context, _ chart.Event) (chart.Result, error) {
		return chart.Result{Patch: chart.Patch{KeyRBACLevel: level}}, nil
	}
}

// addMilestone appends the milestone named in event metadata, ignoring
// duplicates and events with no milestone.
func addMilestone(ctx chart.Context, ev chart.Event) (chart.Result, error) {
	name, _ := ev.Meta["milestone"].(string)
	if name == "" || ctx.HasString(KeyMilestones, name) {
		return chart.Result{}, nil
	}
	milestones := append(ctx.Strings(KeyMilestones), name)
	return chart.Result{Patch: chart.Patch{KeyMilestones: milestones}}, nil
}

func recordSuspension(_ chart.Context, ev chart.Event) (chart.Result, error) {
	reason, _ := ev.Meta["reason"].(string)
	return chart.Result{Patch: chart.Patch{"suspensionReason": reason}}, nil
}

// UserJourneyChart models a user's progression through the platform's RBAC
// tiers: guest through member, subscriber, power user, and admin, with
// suspension and termination side branches.
func UserJourneyChart() *chart.Chart {
	b := chart.NewBuilder(chart.UserJourney)

	b.Initial(JourneyGuest)
	b.Terminal(JourneyTerminated)

	b.Guard("canUpgradeToPowerUser", canUpgradeToPowerUser)
	b.Action("grantGuest", setRBAC(RBACGuest))
	b.Action("grantMember", setRBAC(RBACMember))
	b.Action("grantSubscriber", setRBAC(RBACSubscriber))
	b.Action("grantPowerUser", setRBAC(RBACPowerUser))
	b.Action("grantAdmin", setRBAC(RBACAdmin))
	b.Action("addMilestone", addMilestone)
	b.Action("recordSuspension", recordSuspension)
	b.Action("completeProfile", func(ctx chart.Context, _ chart.Event) (chart.Result, error) {
		if ctx.HasString(KeyMilestones, MilestoneProfileComplete) {
			return chart.Result{}, nil
		}
		milestones := append(ctx.Strings(KeyMilestones), MilestoneProfileComplete)
		return chart.Result{Patch: chart.Patch{KeyMilestones: milestones}}, nil
	})

	b.On(JourneyGuest, EvRegister).Do("grantGuest").Target(JourneyRegistering)
	b.On(JourneyRegistering, EvRegistrationComplete).Target(JourneyOnboarding)
	b.On(JourneyOnboarding, EvOnboardingComplete).Do("grantMember", "completeProfile").Target(JourneyMember)

	b.On(JourneyMember, EvSubscriptionRequested).Target(JourneySubscribing)
	b.On(JourneySubscribing, EvSubscriptionActivated).Do("grantSubscriber").Target(JourneySubscriber)
	// Billing may activate without the journey having asked first.
	b.On(JourneyMember, EvSubscriptionActivated).Do("grantSubscriber").Target(JourneySubscriber)
	b.On(JourneySubscriber, EvSubscriptionCancelled).Do("grantMember").Target(JourneyMember)

	b.On(JourneyMember, EvMilestoneReached).Do("addMilestone").Stay()
	b.On(JourneySubscriber, EvMilestoneReached).Do("addMilestone").Stay()
	b.On(JourneyPowerUser, EvMilestoneReached).Do("addMilestone").Stay()

	b.On(JourneySubscriber, EvPowerUserNominated).Guard("canUpgradeToPowerUser").Target(JourneyPowerUserEvaluation)
	b.On(JourneyPowerUserEvaluation, EvPowerUserApproved).Do("grantPowerUser").Target(JourneyPowerUser)
	b.On(JourneyPowerUserEvaluation, EvPowerUserRejected).Target(JourneySubscriber)

	b.On(JourneyPowerUser, EvAdminNominated).Target(JourneyAdminEvaluation)
	b.On(JourneyAdminEvaluation, EvAdminApproved).Do("grantAdmin").Target(JourneyAdmin)
	b.On(JourneyAdminEvaluation, EvAdminRejected).Target(JourneyPowerUser)

	for _, from := range []string{JourneyMember, JourneySubscriber, JourneyPowerUser, JourneyAdmin} {
		b.On(from, EvSuspendUser).Do("recordSuspension").Target(JourneySuspended)
	}
	b.On(JourneySuspended, EvReinstateUser).Do("grantMember").Target(JourneyMember)
	b.On(JourneySuspended, EvTerminateUser).Target(JourneyTerminated)

	return b.MustBuild()
}
