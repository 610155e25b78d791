// Package e2e provides end-to-end tests over a generated document corpus.
package e2e

import "fmt"

// Document is one corpus entry. Signature is a phrase that occurs only in this document.
type Document struct {
	Name      string
	Signature string
	Content   string
}

// QueryTestCase is a query and the source id that must be retrieved for it.
type QueryTestCase struct {
	Query          string
	ExpectedSource string
}

// Corpus holds documents and query test cases for E2E tests.
type Corpus struct {
	Documents []Document
	TestCases []QueryTestCase
}

var topics = []struct {
	name      string
	signature string
	body      string
}{
	{"interchange-fees", "interchange fee schedule", "The interchange fee schedule sets 1.8 percent for debit cards and 2.1 percent for credit cards."},
	{"kyc-policy", "customer due diligence checklist", "The customer due diligence checklist requires a passport and proof of address for every new account."},
	{"launch-plan", "mobile wallet launch milestones", "Mobile wallet launch milestones are beta in March, public release in June and regional rollout in September."},
	{"api-gateway", "gateway rate limit tiers", "Gateway rate limit tiers allow 100 requests per second for partners and 20 for sandbox keys."},
	{"data-retention", "transaction log retention period", "The transaction log retention period is seven years under the national banking act."},
	{"alliance-terms", "co-branded card revenue share", "The co-branded card revenue share gives the partner bank 60 percent of net interchange."},
	{"incident-review", "settlement outage root cause", "The settlement outage root cause was an expired certificate on the clearing connector."},
	{"pricing", "merchant discount rate tiers", "Merchant discount rate tiers start at 2.5 percent and fall to 1.9 percent above one million in volume."},
	{"fraud-rules", "velocity check thresholds", "Velocity check thresholds block more than five card-not-present attempts within ten minutes."},
	{"roadmap", "open banking consent screens", "Open banking consent screens ship in the third quarter with support for three account providers."},
	{"vendor-review", "cloud vendor risk assessment", "The cloud vendor risk assessment rated the hosting provider medium because of data residency gaps."},
	{"capital-plan", "liquidity coverage ratio target", "The liquidity coverage ratio target is 130 percent with a floor of 110 percent during stress."},
	{"sla", "payout processing service level", "Payout processing service level commits to 99.95 percent monthly availability and two hour resolution."},
	{"loyalty", "cashback reward accrual rules", "Cashback reward accrual rules grant one point per dollar and double points on travel purchases."},
	{"audit", "quarterly access review findings", "Quarterly access review findings listed twelve dormant administrator accounts to revoke."},
	{"architecture", "ledger service event sourcing", "The ledger service event sourcing design stores every balance change as an immutable journal entry."},
	{"sanctions", "sanctions screening match rate", "The sanctions screening match rate fell to 0.3 percent after the fuzzy name tuning."},
	{"partnership", "remittance corridor expansion", "Remittance corridor expansion adds Mexico and the Philippines with a partner money transfer operator."},
	{"treasury", "foreign exchange hedging policy", "The foreign exchange hedging policy covers 80 percent of forecast euro exposure for twelve months."},
	{"support", "chargeback dispute workflow", "The chargeback dispute workflow gives merchants fourteen days to submit evidence."},
	{"onboarding", "merchant onboarding document list", "The merchant onboarding document list includes incorporation papers and beneficial owner declarations."},
	{"security", "hardware security module rotation", "Hardware security module rotation replaces master keys every twenty four months."},
	{"lending", "buy now pay later eligibility", "Buy now pay later eligibility requires a credit score above 640 and six months of account history."},
	{"reporting", "regulatory return submission calendar", "The regulatory return submission calendar lists monthly filings due on the fifteenth."},
}

// BuildCorpus returns one document per topic, each with a unique signature phrase,
// and one query per document asking for that phrase.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for _, tp := range topics {
		name := tp.name + ".txt"
		content := fmt.Sprintf("%s\n\n%s This section describes the %s in detail.", tp.name, tp.body, tp.signature)
		c.Documents = append(c.Documents, Document{Name: name, Signature: tp.signature, Content: content})
		c.TestCases = append(c.TestCases, QueryTestCase{
			Query:          "What is the " + tp.signature + "?",
			ExpectedSource: name,
		})
	}
	return c
}
