package views

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"site-delivery-backend/internal/ledger"
	"site-delivery-backend/internal/model"
)

func TestArrivalRows(t *testing.T) {
	arrival := model.ArrivedVehicle{ID: "a1", VehicleID: "v1"}
	items := []model.Item{
		item("i1", "v1", "B"),
		item("i2", "v1", "A"),
		item("i3", "v1", "A"),
		item("i4", "v2", "C"), // moved to v2, still ledgered here
		item("i5", "v3", "D"), // unrelated
		item("i6", "v2", "E"), // moved to v2 before being checked
	}
	l := ledger.Build([]model.Confirmation{
		{ArrivedVehicleID: "a1", ItemID: "i1", Status: model.StatusConfirmed, Note: "ok"},
		{ArrivedVehicleID: "a1", ItemID: "i4", Status: model.StatusMissing},
		{ArrivedVehicleID: "a1", ItemID: "i6", Status: model.StatusPending},
	}, nil)

	rows := ArrivalRows(arrival, items, l, "")
	assert.Equal(t, []string{"i2", "i3", "i1", "i4"}, IDs(rows))
	assert.Equal(t, Ordinal{Index: 2, Of: 2}, rows[1].Ordinal)
	assert.True(t, rows[2].HasRow)
	assert.Equal(t, "ok", rows[2].Entry.Note)
	assert.False(t, rows[0].HasRow)
	assert.Equal(t, model.StatusPending, rows[0].Entry.Status)

	assert.Equal(t, ledger.Counts{Pending: 2, Confirmed: 1, Missing: 1}, Tally(rows))

	pending := ArrivalRows(arrival, items, l, model.StatusPending)
	assert.Equal(t, []string{"i2", "i3"}, IDs(pending))
	assert.Equal(t, Ordinal{Index: 1, Of: 2}, pending[0].Ordinal)
}
