package charts

import "github.com/launchforge/statecore/internal/chart"

// LegalDocument states.
const (
	DocDraft                 = "draft"
	DocUnderReview           = "under_review"
	DocApproved              = "approved"
	DocSigningWorkflow       = "signing_workflow"
	DocSignatureVerification = "signature_verification"
	DocEffective             = "effective"
	DocAmendmentReview       = "amendment_review"
	DocTerminated            = "terminated"
	DocExpired               = "expired"
	DocCancelled             = "cancelled"
)

// LegalDocument events.
const (
	EvVentureLinked           = "VENTURE_LINKED"
	EvSubmitForReview         = "SUBMIT_FOR_REVIEW"
	EvChangesRequested        = "CHANGES_REQUESTED"
	EvReviewApproved          = "REVIEW_APPROVED"
	EvSigningInitiated        = "SIGNING_INITIATED"
	EvSignatureAdded          = "SIGNATURE_ADDED"
	EvSignaturesVerified      = "SIGNATURES_VERIFIED"
	EvVerificationFailed      = "VERIFICATION_FAILED"
	EvAmendmentProposed       = "AMENDMENT_PROPOSED"
	EvAmendmentApproved       = "AMENDMENT_APPROVED"
	EvAmendmentRejected       = "AMENDMENT_REJECTED"
	EvDocumentTerminated      = "TERMINATE"
	EvDocumentExpired         = "EXPIRE"
	EvDocumentCancelled       = "CANCEL"
)

// LegalDocument context keys.
const (
	KeyRequiredSignatures = "requiredSignatures"
	KeySignatures         = "signaturesCollected"
	KeySignedBy           = "signedBy"
	KeyAmendmentCount     = "amendmentCount"
	KeyDocumentKind       = "documentKind"
)

// DefaultRequiredSignatures applies when signing starts without an explicit
// party count.
const DefaultRequiredSignatures = 2

func requiredSignatures(ctx chart.Context) int {
	if n := ctx.Int(KeyRequiredSignatures); n > 0 {
		return n
	}
	return DefaultRequiredSignatures
}

// signaturesOutstanding admits a signature that still leaves parties unsigned.
func signaturesOutstanding(ctx chart.Context, _ chart.Event) bool {
	return ctx.Int(KeySignatures)+1 < requiredSignatures(ctx)
}

// finalSignature admits the signature that completes the set.
func finalSignature(ctx chart.Context, _ chart.Event) bool {
	return ctx.Int(KeySignatures)+1 >= requiredSignatures(ctx)
}

func linkVenture(_ chart.Context, ev chart.Event) (chart.Result, error) {
	patch := chart.Patch{}
	if v, _ := ev.Meta[KeyVentureID].(string); v != "" {
		patch[KeyVentureID] = v
	}
	if kind, _ := ev.Meta["kind"].(string); kind != "" {
		patch[KeyDocumentKind] = kind
	}
	return chart.Result{Patch: patch}, nil
}

func initSignatures(_ chart.Context, ev chart.Event) (chart.Result, error) {
	required := DefaultRequiredSignatures
	switch v := ev.Meta["parties"].(type) {
	case int:
		required = v
	case float64:
		required = int(v)
	}
	return chart.Result{Patch: chart.Patch{
		KeyRequiredSignatures: required,
		KeySignatures:         0,
		KeySignedBy:           []string{},
	}}, nil
}

func recordSignature(ctx chart.Context, ev chart.Event) (chart.Result, error) {
	patch := chart.Patch{KeySignatures: ctx.Int(KeySignatures) + 1}
	if party, _ := ev.Meta["party"].(string); party != "" {
		patch[KeySignedBy] = append(ctx.Strings(KeySignedBy), party)
	}
	return chart.Result{Patch: patch}, nil
}

func resetSignatures(_ chart.Context, _ chart.Event) (chart.Result, error) {
	return chart.Result{Patch: chart.Patch{
		KeySignatures: 0,
		KeySignedBy:   []string{},
	}}, nil
}

func recordAmendment(ctx chart.Context, _ chart.Event) (chart.Result, error) {
	return chart.Result{Patch: chart.Patch{KeyAmendmentCount: ctx.Int(KeyAmendmentCount) + 1}}, nil
}

// LegalDocumentChart models a legal document from drafting through review,
// the signing workflow, verification, effectiveness, and the amendment
// sub-cycle. Terminated, expired, and cancelled are terminal.
func LegalDocumentChart() *chart.Chart {
	b := chart.NewBuilder(chart.LegalDocument)

	b.Initial(DocDraft)
	b.Terminal(DocTerminated, DocExpired, DocCancelled)

	b.Guard("signaturesOutstanding", signaturesOutstanding)
	b.Guard("finalSignature", finalSignature)
	b.Action("linkVenture", linkVenture)
	b.Action("initSignatures", initSignatures)
	b.Action("recordSignature", recordSignature)
	b.Action("resetSignatures", resetSignatures)
	b.Action("recordAmendment", recordAmendment)

	b.On(DocDraft, EvVentureLinked).Do("linkVenture").Stay()
	b.On(DocDraft, EvSubmitForReview).Target(DocUnderReview)
	b.On(DocUnderReview, EvChangesRequested).Target(DocDraft)
	b.On(DocUnderReview, EvReviewApproved).Target(DocApproved)

	b.On(DocApproved, EvSigningInitiated).Do("initSignatures").Target(DocSigningWorkflow)
	b.On(DocSigningWorkflow, EvSignatureAdded).Guard("signaturesOutstanding").Do("recordSignature").Stay()
	b.On(DocSigningWorkflow, EvSignatureAdded).Guard("finalSignature").
		Do("recordSignature").Target(DocSignatureVerification)
	b.On(DocSignatureVerification, EvSignaturesVerified).Target(DocEffective)
	b.On(DocSignatureVerification, EvVerificationFailed).Do("resetSignatures").Target(DocSigningWorkflow)

	b.On(DocEffective, EvAmendmentProposed).Do("recordAmendment").Target(DocAmendmentReview)
	b.On(DocAmendmentReview, EvAmendmentApproved).Target(DocEffective)
	b.On(DocAmendmentReview, EvAmendmentRejected).Target(DocEffective)

	b.On(DocEffective, EvDocumentTerminated).Target(DocTerminated)
	b.On(DocEffective, EvDocumentExpired).Target(DocExpired)
	for _, from := range []string{DocDraft, DocUnderReview, DocApproved, DocSigningWorkflow} {
		b.On(from, EvDocumentCancelled).Target(DocCancelled)
	}

	return b.MustBuild()
}
