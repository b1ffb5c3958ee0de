package models

// HandoverNote is a shift handover note or a pinned team notice.
type HandoverNote struct {
	// ID is the opaque note identifier, e.g. "HND-...".
	ID string `json:"id" gorm:"column:id;primaryKey"`
	// AuthorID is the user ID of the note author.
	AuthorID string `json:"author_id" gorm:"column:author_id;index"`
	// Shift labels which shift the note hands over, e.g. "2026-08-31/night".
	Shift string `json:"shift" gorm:"column:shift;index"`
	// Title is the short headline shown on the board.
	Title string `json:"title" gorm:"column:title"`
	// Body is the note text.
	Body string `json:"body" gorm:"column:body"`
	// Pinned marks the note as a standing notice rather than a one-shift note.
	Pinned bool `json:"pinned" gorm:"column:pinned;index;default:false"`

	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	UpdatedBy string `json:"updated_by" gorm:"column:updated_by"`

	// Claim columns, written only by the lock coordinator.
	ClaimHolder    string `json:"claim_holder,omitempty" gorm:"column:claim_holder;index"`
	ClaimStampedAt int64  `json:"claim_stamped_at,omitempty" gorm:"column:claim_stamped_at"`
}

func (HandoverNote) TableName() string {
	return "handover_notes"
}

func (h *HandoverNote) LockKey() string {
	return h.ID
}

func (h *HandoverNote) ClaimState() (string, int64) {
	return h.ClaimHolder, h.ClaimStampedAt
}

// HandoverLockResource describes the handover_notes table to the lock
// coordinator.
var HandoverLockResource = LockResource{
	Name:       "handover_note",
	PrimaryKey: "id",
	New:        func() Lockable { return &HandoverNote{} },
}
