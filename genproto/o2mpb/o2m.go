// Package o2mpb holds the operator-to-middleware wire messages of spec.md
// §4.7/§6, hand-written in the shape protoc-gen-go would generate from
// proto/o2m/o2m.proto.
package o2mpb

import (
	"github.com/mablr/trace2e/genproto/m2mpb"
)

// SetFlag toggles local_confidentiality or local_integrity on a resource.
type SetFlag struct {
	Resource m2mpb.Id `json:"resource"`
	On       bool     `json:"on"`
}

func (m *SetFlag) Validate() error { return m.Resource.Validate() }

// SetDeleted drives the O2M half of the deletion state machine
// (none→pending, spec.md §4.4).
type SetDeleted struct {
	Resource m2mpb.Id `json:"resource"`
}

func (m *SetDeleted) Validate() error { return m.Resource.Validate() }

// EnforceConsent arms the consent state machine for a resource
// (off→armed, spec.md §4.4).
type EnforceConsent struct {
	Resource m2mpb.Id `json:"resource"`
}

func (m *EnforceConsent) Validate() error { return m.Resource.Validate() }

// SetConsentDecision records an operator's grant/deny for a pending
// (source, destination) consent request.
type SetConsentDecision struct {
	Source      m2mpb.Id `json:"source"`
	Destination m2mpb.Id `json:"destination"`
	Grant       bool     `json:"grant"`
}

func (m *SetConsentDecision) Validate() error {
	if err := m.Source.Validate(); err != nil {
		return err
	}
	return m.Destination.Validate()
}

// GetReferencesRequest asks for a resource's full lineage (the provenance
// closure), per spec.md §4.7 get_references.
type GetReferencesRequest struct {
	Resource m2mpb.Id `json:"resource"`
}

func (m *GetReferencesRequest) Validate() error { return m.Resource.Validate() }

// References is the flattened closure of a resource's provenance.
type References struct {
	Local  []m2mpb.Id            `json:"local"`
	Remote map[string][]m2mpb.Id `json:"remote"`
}

func (m *References) Validate() error { return nil }

// GetPoliciesRequest asks for a resource's current Label.
type GetPoliciesRequest struct {
	Resource m2mpb.Id `json:"resource"`
}

func (m *GetPoliciesRequest) Validate() error { return m.Resource.Validate() }

// Policies mirrors api.Label on the wire.
type Policies struct {
	LocalConfidentiality bool   `json:"local_confidentiality"`
	LocalIntegrity       bool   `json:"local_integrity"`
	Deleted              string `json:"deleted"`
	ConsentRequired      bool   `json:"consent_required"`
}

func (m *Policies) Validate() error { return nil }

// Ack is the empty acknowledgement shared across O2M commands that have no
// other result to report.
type Ack struct{}

func (m *Ack) Validate() error { return nil }
