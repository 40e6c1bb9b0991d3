// Package charts holds the statechart definitions for the six business
// entity types, plus the default cross-machine coordination rule table
// linking them.
//
// Each chart is a static transition table built once at package init and
// validated on first use. Guards are pure predicates over the instance
// context and event metadata; actions return context patches and may emit
// follow-up events on the same instance. Nothing in this package performs
// I/O: effects live behind the orchestrator.
package charts

import "github.com/launchforge/statecore/internal/chart"

// Context keys shared across charts.
const (
	// KeyUserID links an instance to its owning user; coordination rules
	// resolve most targets through it.
	KeyUserID = "userId"
	// KeyVentureID links documents and teams to a venture.
	KeyVentureID = "ventureId"
)

// All returns every chart, ready to register with the orchestrator.
func All() []*chart.Chart {
	return []*chart.Chart{
		UserJourneyChart(),
		VentureChart(),
		LegalDocumentChart(),
		ComplianceChart(),
		SubscriptionChart(),
		TeamChart(),
	}
}
