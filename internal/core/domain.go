package core

import "time"

type (
	// Family is a household record owned by the principal that created it.
	Family struct {
		ID        string     `json:"id"`
		Name      string     `json:"name"`
		Members   []string   `json:"members"`
		Address   string     `json:"address"`
		CreatedBy Principal  `json:"createdBy"`
		CreatedAt time.Time  `json:"createdAt"`
		UpdatedAt *time.Time `json:"updatedAt,omitempty"` // nil until the first update
	}

	// FamilyPayload carries the replaceable fields of a Family.
	FamilyPayload struct {
		Name    string   `json:"name"`
		Members []string `json:"members"`
		Address string   `json:"address"`
	}

	// FamilyExpense is an expense attributed to a Family.
	//
	// FamilyName is a snapshot of the parent's name taken when the expense is
	// created. It is never refreshed, so it goes stale if the family is renamed.
	// FamilyID is a lookup key, not an ownership edge: deleting the family
	// leaves its expenses in place.
	FamilyExpense struct {
		ID            string    `json:"id"`
		FamilyID      string    `json:"familyId"`
		FamilyName    string    `json:"familyName,omitempty"`
		Amount        string    `json:"amount"`
		AttachmentURL string    `json:"attachmentURL"`
		Labels        []string  `json:"labels"`
		CreatedAt     time.Time `json:"createdAt"`
	}

	FamilyExpensePayload struct {
		FamilyID      string   `json:"familyId"`
		Amount        string   `json:"amount"`
		AttachmentURL string   `json:"attachmentURL"`
		Labels        []string `json:"labels,omitempty"`
	}
)

// Normalize replaces a nil member list with an empty one so records always
// serialise members as an array.
func (p *FamilyPayload) Normalize() {
	if p.Members == nil {
		p.Members = []string{}
	}
}

// Clone returns a deep copy so callers cannot mutate stored slices.
func (f Family) Clone() Family {
	out := f
	out.Members = append([]string{}, f.Members...)
	if f.UpdatedAt != nil {
		t := *f.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// Clone returns a deep copy so callers cannot mutate stored slices.
func (e FamilyExpense) Clone() FamilyExpense {
	out := e
	out.Labels = append([]string{}, e.Labels...)
	return out
}
