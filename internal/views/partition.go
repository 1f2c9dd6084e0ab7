package views

import (
	"site-delivery-backend/internal/ledger"
	"site-delivery-backend/internal/model"
)

// Group is a viewer color group.
type Group string

const (
	GroupPending          Group = "pending"
	GroupConfirmed        Group = "confirmed"
	GroupMissing          Group = "missing"
	GroupAddedFromVehicle Group = "added_from_vehicle"
	GroupAddedFromModel   Group = "added_from_model"
)

// Groups lists the color groups in paint order.
var Groups = []Group{GroupPending, GroupConfirmed, GroupMissing, GroupAddedFromVehicle, GroupAddedFromModel}

// Target is one arrival whose items are being colored.
type Target struct {
	VehicleID string
	ArrivalID string
}

// Partition is the result of splitting GUIDs into color groups.
type Partition struct {
	Groups map[Group][]string `json:"groups"`
	// Neutral holds project GUIDs that belong to no group.
	Neutral []string `json:"neutral"`
	// Evaluated is the number of distinct GUIDs placed in a group.
	Evaluated int `json:"evaluated"`
}

// Size is the total number of GUIDs across all groups.
func (p Partition) Size() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g)
	}
	return n
}

// PartitionGUIDs places the GUIDs of every target's items into exactly one
// group. A target's items are the ArrivalItems of its arrival. When a GUID
// belongs to several targets the first target wins. Items without a GUID
// cannot be painted and are skipped.
func PartitionGUIDs(targets []Target, items []model.Item, l *ledger.Ledger) Partition {
	p := Partition{Groups: make(map[Group][]string, len(Groups))}
	placed := make(map[string]bool)

	place := func(arrivalID string, it model.Item) {
		guid := it.ObjectGUID()
		if guid == "" || placed[guid] {
			return
		}
		placed[guid] = true
		g := groupOf(l.Lookup(arrivalID, it.ID))
		p.Groups[g] = append(p.Groups[g], guid)
	}

	for _, t := range targets {
		arrival := model.ArrivedVehicle{ID: t.ArrivalID, VehicleID: t.VehicleID}
		for _, it := range ArrivalItems(arrival, items, l) {
			place(t.ArrivalID, it)
		}
	}
	p.Evaluated = len(placed)

	for _, it := range items {
		guid := it.ObjectGUID()
		if guid == "" || placed[guid] {
			continue
		}
		placed[guid] = true
		p.Neutral = append(p.Neutral, guid)
	}
	return p
}

func groupOf(e ledger.Entry) Group {
	switch e.Status {
	case model.StatusConfirmed:
		return GroupConfirmed
	case model.StatusMissing:
		return GroupMissing
	case model.StatusAdded:
		if e.SourceVehicleID == nil {
			return GroupAddedFromModel
		}
		return GroupAddedFromVehicle
	default:
		return GroupPending
	}
}
