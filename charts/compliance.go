package charts

import "github.com/launchforge/statecore/internal/chart"

// Compliance states.
const (
	CompNonCompliant       = "non_compliant"
	CompRequired           = "compliance_required"
	CompChecking           = "checking_compliance"
	CompCompliant          = "compliant"
	CompViolationDetected  = "violation_detected"
	CompViolationEscalated = "violation_escalated"
	CompRemediation        = "remediation"
	CompSuspended          = "suspended"
	CompLegalAction        = "legal_action"
	CompTerminated         = "terminated"
)

// Compliance events.
const (
	EvComplianceCheckRequired = "COMPLIANCE_CHECK_REQUIRED"
	EvCheckStarted            = "CHECK_STARTED"
	EvCheckCompleted          = "CHECK_COMPLETED"
	EvDocumentSigned          = "DOCUMENT_SIGNED"
	EvViolationReported       = "VIOLATION_REPORTED"
	EvViolationEscalate       = "ESCALATE"
	EvRemediationStarted      = "REMEDIATION_STARTED"
	EvRemediationComplete     = "REMEDIATION_COMPLETE"
	EvComplianceSuspend       = "SUSPEND"
	EvLegalActionFiled        = "LEGAL_ACTION_FILED"
	EvComplianceReinstated    = "REINSTATED"
	EvCaseClosed              = "CASE_CLOSED"
	EvComplianceTerminate     = "TERMINATE"
)

// Compliance context keys.
const (
	KeyComplianceScore = "complianceScore"
	KeyRiskLevel       = "riskLevel"
	KeyViolations      = "violations"
	KeyDocumentsSigned = "documentsSigned"
)

// Risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// PassingScore is the compliance score a check must reach to pass.
const PassingScore = 70

// Score adjustments.
const (
	signedDocumentBonus = 15
	violationPenalty    = 25
	maxComplianceScore  = 100
)

// scoreSufficient passes a completed check when the score clears the bar.
func scoreSufficient(ctx chart.Context, _ chart.Event) bool {
	return ctx.Int(KeyComplianceScore) >= PassingScore
}

// riskHigh admits escalation for high-risk or repeat offenders.
func riskHigh(ctx chart.Context, _ chart.Event) bool {
	return ctx.String(KeyRiskLevel) == RiskHigh || ctx.Int(KeyViolations) >= 2
}

// recordSignedDocument raises the compliance score for each signed document.
func recordSignedDocument(ctx chart.Context, _ chart.Event) (chart.Result, error) {
	score := ctx.Int(KeyComplianceScore) + signedDocumentBonus
	if score > maxComplianceScore {
		score = maxComplianceScore
	}
	return chart.Result{Patch: chart.Patch{
		KeyComplianceScore: score,
		KeyDocumentsSigned: ctx.Int(KeyDocumentsSigned) + 1,
	}}, nil
}

func recordViolation(ctx chart.Context, ev chart.Event) (chart.Result, error) {
	score := ctx.Int(KeyComplianceScore) - violationPenalty
	if score < 0 {
		score = 0
	}
	risk := RiskMedium
	if ctx.String(KeyRiskLevel) == RiskMedium || ctx.String(KeyRiskLevel) == RiskHigh {
		risk = RiskHigh
	}
	patch := chart.Patch{
		KeyComplianceScore: score,
		KeyViolations:      ctx.Int(KeyViolations) + 1,
		KeyRiskLevel:       risk,
	}
	if kind, _ := ev.Meta["violation"].(string); kind != "" {
		patch["lastViolation"] = kind
	}
	return chart.Result{Patch: patch}, nil
}

func markCompliant(_ chart.Context, _ chart.Event) (chart.Result, error) {
	return chart.Result{Patch: chart.Patch{KeyRiskLevel: RiskLow}}, nil
}

func markNonCompliant(ctx chart.Context, _ chart.Event) (chart.Result, error) {
	risk := ctx.String(KeyRiskLevel)
	if risk == "" || risk == RiskLow {
		risk = RiskMedium
	}
	return chart.Result{Patch: chart.Patch{KeyRiskLevel: risk}}, nil
}

// ComplianceChart models a user's compliance standing: the check cycle into
// compliant, the violation branch with escalation, and the remediation
// sub-cycle back into checking.
func ComplianceChart() *chart.Chart {
	b := chart.NewBuilder(chart.Compliance)

	b.Initial(CompNonCompliant)
	b.Terminal(CompTerminated)

	b.Guard("scoreSufficient", scoreSufficient)
	b.Guard("riskHigh", riskHigh)
	b.Action("recordSignedDocument", recordSignedDocument)
	b.Action("recordViolation", recordViolation)
	b.Action("markCompliant", markCompliant)
	b.Action("markNonCompliant", markNonCompliant)

	b.On(CompNonCompliant, EvComplianceCheckRequired).Target(CompRequired)
	b.On(CompCompliant, EvComplianceCheckRequired).Target(CompRequired)
	b.On(CompRequired, EvCheckStarted).Target(CompChecking)

	// First matching guard wins: a sufficient score passes, anything else
	// falls through to the unguarded failure edge.
	b.On(CompChecking, EvCheckCompleted).Guard("scoreSufficient").Do("markCompliant").Target(CompCompliant)
	b.On(CompChecking, EvCheckCompleted).Do("markNonCompliant").Target(CompNonCompliant)

	// Signed documents raise the score wherever the record currently sits.
	for _, state := range []string{CompNonCompliant, CompRequired, CompChecking, CompCompliant} {
		b.On(state, EvDocumentSigned).Do("recordSignedDocument").Stay()
	}

	for _, state := range []string{CompNonCompliant, CompChecking, CompCompliant} {
		b.On(state, EvViolationReported).Do("recordViolation").Target(CompViolationDetected)
	}
	b.On(CompViolationDetected, EvViolationEscalate).Guard("riskHigh").Target(CompViolationEscalated)
	b.On(CompViolationDetected, EvRemediationStarted).Target(CompRemediation)
	b.On(CompRemediation, EvRemediationComplete).Target(CompChecking)

	b.On(CompViolationEscalated, EvComplianceSuspend).Target(CompSuspended)
	b.On(CompViolationEscalated, EvLegalActionFiled).Target(CompLegalAction)
	b.On(CompViolationEscalated, EvComplianceTerminate).Target(CompTerminated)

	b.On(CompSuspended, EvComplianceReinstated).Target(CompRequired)
	b.On(CompLegalAction, EvCaseClosed).Target(CompRequired)
	b.On(CompLegalAction, EvComplianceTerminate).Target(CompTerminated)

	return b.MustBuild()
}
