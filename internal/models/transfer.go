package models

import "time"

// TransferRecord tracks one device's repair journey between branches.
// Route and device/customer fields are fixed at creation; only the
// status-transition side-fields are filled in later.
type TransferRecord struct {
	ID string `db:"id" json:"id"`

	BranchFrom string `db:"branch_from" json:"branch_from"`
	BranchTo   string `db:"branch_to" json:"branch_to"`

	CustomerName       string  `db:"customer_name" json:"customer_name"`
	PhoneModel         string  `db:"phone_model" json:"phone_model"`
	IMEI               string  `db:"imei" json:"imei"`
	Passcode           *string `db:"passcode" json:"passcode,omitempty"`
	ProblemDescription string  `db:"problem_description" json:"problem_description"`

	StaffReceiveName string    `db:"staff_receive_name" json:"staff_receive_name"`
	DateFromBranch   time.Time `db:"date_from_branch" json:"date_from_branch"`

	StaffSendName    string    `db:"staff_send_name" json:"staff_send_name"`
	DateSentToBranch time.Time `db:"date_sent_to_branch" json:"date_sent_to_branch"`

	TechnicianReceiveName *string    `db:"technician_receive_name" json:"technician_receive_name,omitempty"`
	DateReceivedByTech    *time.Time `db:"date_received_by_tech" json:"date_received_by_tech,omitempty"`
	DateRepairDone        *time.Time `db:"date_repair_done" json:"date_repair_done,omitempty"`
	RepairCost            *float64   `db:"repair_cost" json:"repair_cost,omitempty"`

	Status  TransferStatus `db:"status" json:"status"`
	Remarks *string        `db:"remarks" json:"remarks,omitempty"`

	UserID    string    `db:"user_id" json:"user_id"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TransferFilter constrains listing queries. All filters are conjunctive.
type TransferFilter struct {
	// Search matches customer_name, phone_model or imei as a
	// case-insensitive substring.
	Search string
	Status TransferStatus
	// Branch matches either side of the route.
	Branch      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time

	// Scope restricts visibility by role; empty fields mean unrestricted.
	Scope VisibilityScope

	Limit  int
	Offset int
}

// VisibilityScope narrows listings to the records a caller may see.
type VisibilityScope struct {
	BranchFrom string
	BranchTo   string
}

// ScopeFor derives the read scope for a user: admins see everything,
// HQ staff their outbound records, technicians their inbound ones.
func ScopeFor(user *User) VisibilityScope {
	if user == nil {
		return VisibilityScope{BranchFrom: "\x00", BranchTo: "\x00"}
	}
	switch user.Role {
	case RoleAdmin:
		return VisibilityScope{}
	case RoleHQStaff:
		if user.Branch == "" {
			break
		}
		return VisibilityScope{BranchFrom: user.Branch}
	case RoleTechnician:
		if user.Branch == "" {
			break
		}
		return VisibilityScope{BranchTo: user.Branch}
	}
	// Fail closed: an impossible branch name matches nothing. Covers
	// unknown roles and branch-scoped users with no branch assigned.
	return VisibilityScope{BranchFrom: "\x00", BranchTo: "\x00"}
}

// Allows reports whether a record falls inside the scope.
func (s VisibilityScope) Allows(record *TransferRecord) bool {
	if record == nil {
		return false
	}
	if s.BranchFrom != "" && record.BranchFrom != s.BranchFrom {
		return false
	}
	if s.BranchTo != "" && record.BranchTo != s.BranchTo {
		return false
	}
	return true
}
