package models

import (
	"time"

	"github.com/google/uuid"
)

type Permission struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Codename    string    `json:"codename" db:"codename"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Permission codenames checked by the HTTP layer
const (
	PermApproveSupplyRequest = "approve_supply_request"
	PermApproveBorrowRequest = "approve_borrow_request"
	PermApproveReservation   = "approve_reservation"
	PermClaimBatch           = "claim_batch"
	PermReturnItems          = "return_items"
	PermManageInventory      = "manage_inventory"
	PermManageUsers          = "manage_users"
	PermViewReports          = "view_reports"
	PermRunMaintenance       = "run_maintenance"
)

// DefaultPermissions is the catalog seeded by initialize_permissions
var DefaultPermissions = []Permission{
	{Codename: PermApproveSupplyRequest, Name: "Approve supply requests"},
	{Codename: PermApproveBorrowRequest, Name: "Approve borrow requests"},
	{Codename: PermApproveReservation, Name: "Approve reservations"},
	{Codename: PermClaimBatch, Name: "Release claimed batches"},
	{Codename: PermReturnItems, Name: "Receive returned items"},
	{Codename: PermManageInventory, Name: "Manage inventory and stock"},
	{Codename: PermManageUsers, Name: "Manage users"},
	{Codename: PermViewReports, Name: "View reports"},
	{Codename: PermRunMaintenance, Name: "Run maintenance procedures"},
}

// ApprovalPermission returns the codename guarding approval of a request kind
func ApprovalPermission(kind RequestKind) string {
	switch kind {
	case RequestKindSupply:
		return PermApproveSupplyRequest
	case RequestKindReservation:
		return PermApproveReservation
	default:
		return PermApproveBorrowRequest
	}
}
