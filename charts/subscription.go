package charts

import "github.com/launchforge/statecore/internal/chart"

// Subscription states.
const (
	SubInactive       = "inactive"
	SubTrial          = "trial"
	SubSubscribing    = "subscribing"
	SubActive         = "active"
	SubUpgrading      = "upgrading"
	SubDowngrading    = "downgrading"
	SubPaymentPending = "payment_pending"
	SubPaymentFailed  = "payment_failed"
	SubGracePeriod    = "grace_period"
	SubCancelled      = "cancelled"
	SubSuspended      = "suspended"
	SubTerminated     = "terminated"
	SubRefunded       = "refunded"
)

// Subscription events.
const (
	EvTrialStarted       = "TRIAL_STARTED"
	EvTrialExpired       = "TRIAL_EXPIRED"
	EvSubscribe          = "SUBSCRIBE"
	EvPaymentSucceeded   = "PAYMENT_SUCCEEDED"
	EvPaymentFailed      = "PAYMENT_FAILED"
	EvPaymentDue         = "PAYMENT_DUE"
	EvPaymentRetryFailed = "PAYMENT_RETRY_FAILED"
	EvUpgradeRequested   = "UPGRADE_REQUESTED"
	EvUpgradeComplete    = "UPGRADE_COMPLETE"
	EvDowngradeRequested = "DOWNGRADE_REQUESTED"
	EvDowngradeComplete  = "DOWNGRADE_COMPLETE"
	EvGracePeriodStart   = "GRACE_PERIOD_START"
	EvGracePeriodExpired = "GRACE_PERIOD_EXPIRED"
	EvSubscriptionCancel = "CANCEL"
	EvRefundIssued       = "REFUND_ISSUED"
)

// Subscription context keys.
const (
	KeyPlan           = "plan"
	KeyPendingPlan    = "pendingPlan"
	KeyFailedPayments = "failedPayments"
)

func selectPlan(_ chart.Context, ev chart.Event) (chart.Result, error) {
	patch := chart.Patch{}
	if plan, _ := ev.Meta[KeyPlan].(string); plan != "" {
		patch[KeyPlan] = plan
	}
	return chart.Result{Patch: patch}, nil
}

func activateSubscription(_ chart.Context, _ chart.Event) (chart.Result, error) {
	return chart.Result{Patch: chart.Patch{KeyFailedPayments: 0}}, nil
}

// recordFailedPayment counts consecutive failures; an external scheduler
// watches the count and starts the grace period past its threshold.
func recordFailedPayment(ctx chart.Context, _ chart.Event) (chart.Result, error) {
	return chart.Result{Patch: chart.Patch{KeyFailedPayments: ctx.Int(KeyFailedPayments) + 1}}, nil
}

func stagePlanChange(_ chart.Context, ev chart.Event) (chart.Result, error) {
	patch := chart.Patch{}
	if plan, _ := ev.Meta[KeyPlan].(string); plan != "" {
		patch[KeyPendingPlan] = plan
	}
	return chart.Result{Patch: patch}, nil
}

func applyPlanChange(ctx chart.Context, _ chart.Event) (chart.Result, error) {
	patch := chart.Patch{KeyPendingPlan: nil}
	if pending := ctx.String(KeyPendingPlan); pending != "" {
		patch[KeyPlan] = pending
	}
	return chart.Result{Patch: patch}, nil
}

// SubscriptionChart models billing: trial and signup, the active plan with
// upgrade/downgrade legs, the dunning path through payment_failed and
// grace_period, and the terminal cancelled/suspended/terminated/refunded
// states.
func SubscriptionChart() *chart.Chart {
	b := chart.NewBuilder(chart.Subscription)

	b.Initial(SubInactive)
	b.Terminal(SubCancelled, SubSuspended, SubTerminated, SubRefunded)

	b.Action("selectPlan", selectPlan)
	b.Action("activateSubscription", activateSubscription)
	b.Action("recordFailedPayment", recordFailedPayment)
	b.Action("stagePlanChange", stagePlanChange)
	b.Action("applyPlanChange", applyPlanChange)

	b.On(SubInactive, EvTrialStarted).Target(SubTrial)
	b.On(SubTrial, EvTrialExpired).Target(SubInactive)
	b.On(SubInactive, EvSubscribe).Do("selectPlan").Target(SubSubscribing)
	b.On(SubTrial, EvSubscribe).Do("selectPlan").Target(SubSubscribing)

	b.On(SubSubscribing, EvPaymentSucceeded).Do("activateSubscription").Target(SubActive)
	b.On(SubSubscribing, EvPaymentFailed).Do("recordFailedPayment").Target(SubPaymentFailed)

	b.On(SubActive, EvUpgradeRequested).Do("stagePlanChange").Target(SubUpgrading)
	b.On(SubUpgrading, EvUpgradeComplete).Do("applyPlanChange").Target(SubActive)
	b.On(SubActive, EvDowngradeRequested).Do("stagePlanChange").Target(SubDowngrading)
	b.On(SubDowngrading, EvDowngradeComplete).Do("applyPlanChange").Target(SubActive)

	b.On(SubActive, EvPaymentDue).Target(SubPaymentPending)
	b.On(SubPaymentPending, EvPaymentSucceeded).Do("activateSubscription").Target(SubActive)
	b.On(SubPaymentPending, EvPaymentFailed).Do("recordFailedPayment").Target(SubPaymentFailed)

	// Each failed retry is an audited self-transition; recovery resets the
	// failure count.
	b.On(SubPaymentFailed, EvPaymentRetryFailed).Do("recordFailedPayment").Target(SubPaymentFailed)
	b.On(SubPaymentFailed, EvPaymentSucceeded).Do("activateSubscription").Target(SubActive)
	b.On(SubPaymentFailed, EvGracePeriodStart).Target(SubGracePeriod)

	b.On(SubGracePeriod, EvPaymentSucceeded).Do("activateSubscription").Target(SubActive)
	b.On(SubGracePeriod, EvGracePeriodExpired).Target(SubSuspended)

	for _, from := range []string{SubTrial, SubActive, SubPaymentPending, SubPaymentFailed, SubGracePeriod} {
		b.On(from, EvSubscriptionCancel).Target(SubCancelled)
	}
	b.On(SubActive, EvRefundIssued).Target(SubRefunded)

	return b.MustBuild()
}
