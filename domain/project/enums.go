package project

// Mode is the workspace mode the project is currently in
type Mode string

const (
	ModePool        Mode = "pool"
	ModeRetrieval   Mode = "retrieval"
	ModeCoScientist Mode = "coscientist"
)

func (m Mode) IsValid() bool {
	switch m {
	case ModePool, ModeRetrieval, ModeCoScientist:
		return true
	}
	return false
}

// Role is a member's access role
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// ItemType classifies a data pool artifact
type ItemType string

const (
	ItemTypePDB      ItemType = "pdb"
	ItemTypePDF      ItemType = "pdf"
	ItemTypeImage    ItemType = "image"
	ItemTypeSequence ItemType = "sequence"
	ItemTypeText     ItemType = "text"
	ItemTypeOther    ItemType = "other"
)

func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypePDB, ItemTypePDF, ItemTypeImage, ItemTypeSequence, ItemTypeText, ItemTypeOther:
		return true
	}
	return false
}

// TrustLevel grades how much a graph node can be relied upon
type TrustLevel string

const (
	TrustHigh      TrustLevel = "high"
	TrustMedium    TrustLevel = "medium"
	TrustLow       TrustLevel = "low"
	TrustUntrusted TrustLevel = "untrusted"
)

func (t TrustLevel) IsValid() bool {
	switch t {
	case TrustHigh, TrustMedium, TrustLow, TrustUntrusted:
		return true
	}
	return false
}

// CorrelationType describes the relation an edge expresses
type CorrelationType string

const (
	CorrelationSimilar     CorrelationType = "similar"
	CorrelationCites       CorrelationType = "cites"
	CorrelationContradicts CorrelationType = "contradicts"
	CorrelationSupports    CorrelationType = "supports"
	CorrelationDerived     CorrelationType = "derived"
	CorrelationCustom      CorrelationType = "custom"
)

func (c CorrelationType) IsValid() bool {
	switch c {
	case CorrelationSimilar, CorrelationCites, CorrelationContradicts,
		CorrelationSupports, CorrelationDerived, CorrelationCustom:
		return true
	}
	return false
}

// StepType classifies a co-scientist reasoning step
type StepType string

const (
	StepReasoning  StepType = "reasoning"
	StepEvidence   StepType = "evidence"
	StepHypothesis StepType = "hypothesis"
	StepConclusion StepType = "conclusion"
	StepQuestion   StepType = "question"
	StepDesign     StepType = "design"
)

func (t StepType) IsValid() bool {
	switch t {
	case StepReasoning, StepEvidence, StepHypothesis, StepConclusion, StepQuestion, StepDesign:
		return true
	}
	return false
}

// StepStatus is the review state of a co-scientist step
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepApproved StepStatus = "approved"
	StepRejected StepStatus = "rejected"
	StepModified StepStatus = "modified"
)

func (s StepStatus) IsValid() bool {
	switch s {
	case StepPending, StepApproved, StepRejected, StepModified:
		return true
	}
	return false
}
