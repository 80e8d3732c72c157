package domain

// Role identifiers known to the access guard.
const (
	RoleAdmin    = "admin"
	RoleWorker   = "worker"
	RoleCitizen  = "citizen"
	RoleChampion = "champion"
)

// Entity kinds used by the audit log and the transition engine.
const (
	KindReport      = "report"
	KindJob         = "job"
	KindItem        = "marketplace_item"
	KindApplication = "worker_application"
	KindEvent       = "event"
	KindUser        = "user"
)

type WasteReport struct {
	ID                string  `json:"id"`
	ReporterID        string  `json:"reporter_id"`
	WasteType         string  `json:"waste_type" enum:"plastic,organic,e_waste,metal,glass,mixed"`
	Description       string  `json:"description,omitempty"`
	Location          string  `json:"location,omitempty"`
	WeightKG          float64 `json:"weight_kg,omitempty"`
	Status            string  `json:"status" enum:"pending,verified,rejected,worker_completed"`
	PointsAwarded     *int    `json:"points_awarded,omitempty"`
	RejectionReason   *string `json:"rejection_reason,omitempty"`
	WorkerID          *string `json:"worker_id,omitempty"`
	VerifiedAt        *string `json:"verified_at,omitempty" format:"date-time"`
	WorkerCompletedAt *string `json:"worker_completed_at,omitempty" format:"date-time"`
	CreatedAt         string  `json:"created_at" format:"date-time"`
	UpdatedAt         string  `json:"updated_at" format:"date-time"`
	Version           int     `json:"version"`
}

type Job struct {
	ID              string  `json:"id"`
	ClientID        string  `json:"client_id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	Category        string  `json:"category,omitempty"`
	Location        string  `json:"location,omitempty"`
	Status          string  `json:"status" enum:"pending,verified,rejected,assigned,in_progress,completed"`
	WorkerID        *string `json:"worker_id,omitempty"`
	AdminNotes      *string `json:"admin_notes,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	ScheduledDate   *string `json:"scheduled_date,omitempty" format:"date-time"`
	CompletedAt     *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
	Version         int     `json:"version"`
}

type MarketplaceItem struct {
	ID              string  `json:"id"`
	SellerID        string  `json:"seller_id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	Category        string  `json:"category,omitempty"`
	PriceCents      int     `json:"price_cents"`
	Views           int     `json:"views"`
	Status          string  `json:"status" enum:"pending,approved,rejected,sold"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	SoldAt          *string `json:"sold_at,omitempty" format:"date-time"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
	Version         int     `json:"version"`
}

type WorkerApplication struct {
	ID              string  `json:"id"`
	ApplicantID     string  `json:"applicant_id"`
	FullName        string  `json:"full_name"`
	Phone           string  `json:"phone,omitempty"`
	Skills          string  `json:"skills,omitempty"`
	Status          string  `json:"status" enum:"pending,verified,rejected"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	VerifiedAt      *string `json:"verified_at,omitempty" format:"date-time"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
	Version         int     `json:"version"`
}

// Event is a community cleanup drive organised by a green champion.
type Event struct {
	ID           string   `json:"id"`
	ChampionID   string   `json:"champion_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Location     string   `json:"location,omitempty"`
	StartsAt     string   `json:"starts_at,omitempty" format:"date-time"`
	Status       string   `json:"status" enum:"upcoming,ongoing,completed"`
	Participants []string `json:"participants,omitempty"`
	CreatedAt    string   `json:"created_at" format:"date-time"`
	UpdatedAt    string   `json:"updated_at" format:"date-time"`
	Version      int      `json:"version"`
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role" enum:"admin,worker,citizen,champion"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// AuditEntry is one row of the append-only audit log. Every state change
// writes exactly one entry in the same transaction as the mutation.
type AuditEntry struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
