package models

import "strings"

// TransferStatus is the lifecycle stage of a transfer.
type TransferStatus string

const (
	StatusPending  TransferStatus = "PENDING"
	StatusReceived TransferStatus = "RECEIVED"
	StatusInRepair TransferStatus = "IN_REPAIR"
	StatusDone     TransferStatus = "DONE"
	StatusReturned TransferStatus = "RETURNED"
)

// StatusOrder lists all statuses in lifecycle order. The slice index is the
// total order between stages.
var StatusOrder = []TransferStatus{
	StatusPending,
	StatusReceived,
	StatusInRepair,
	StatusDone,
	StatusReturned,
}

var statusLabels = map[TransferStatus]string{
	StatusPending:  "Pending",
	StatusReceived: "Received",
	StatusInRepair: "In Repair",
	StatusDone:     "Done",
	StatusReturned: "Returned",
}

var statusColors = map[TransferStatus]string{
	StatusPending:  "badge-warning",
	StatusReceived: "badge-info",
	StatusInRepair: "badge-primary",
	StatusDone:     "badge-success",
	StatusReturned: "badge-secondary",
}

// ValidStatus reports whether s is one of the five lifecycle stages.
func ValidStatus(s TransferStatus) bool {
	_, ok := statusLabels[s]
	return ok
}

// NextStatus returns the stage immediately following s in lifecycle order.
// The second return is false for RETURNED and for unrecognised values.
func NextStatus(s TransferStatus) (TransferStatus, bool) {
	for i, status := range StatusOrder {
		if status == s {
			if i+1 < len(StatusOrder) {
				return StatusOrder[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// Label returns the human-readable name for a status.
func (s TransferStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// ColorClass returns the UI badge token for a status. Unknown values fall
// back to a neutral badge.
func ColorClass(s TransferStatus) string {
	if color, ok := statusColors[s]; ok {
		return color
	}
	return "badge-light"
}

// ParseStatus normalises a raw status string ("In Repair", "in_repair",
// "IN_REPAIR" all resolve) and reports whether it names a known stage.
func ParseStatus(raw string) (TransferStatus, bool) {
	candidate := TransferStatus(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")))
	if ValidStatus(candidate) {
		return candidate, true
	}
	return "", false
}
