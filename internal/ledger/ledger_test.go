package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"site-delivery-backend/internal/model"
)

func strPtr(s string) *string { return &s }

func TestLedger_LookupDefaultsToPending(t *testing.T) {
	l := Build([]model.Confirmation{
		{ID: "c1", ArrivedVehicleID: "a1", ItemID: "i1", Status: model.StatusMissing, Note: "not on truck"},
	}, nil)

	e := l.Lookup("a1", "i1")
	assert.Equal(t, model.StatusMissing, e.Status)
	assert.Equal(t, "not on truck", e.Note)
	assert.Equal(t, "c1", e.ConfirmationID)

	_, ok := l.Row("a1", "i2")
	assert.False(t, ok)
	assert.Equal(t, model.StatusPending, l.Status("a1", "i2"))
	assert.Equal(t, "", l.Note("a2", "i1"))
}

func TestLedger_CountsAndPhotos(t *testing.T) {
	l := Build([]model.Confirmation{
		{ArrivedVehicleID: "a1", ItemID: "i1", Status: model.StatusConfirmed},
		{ArrivedVehicleID: "a1", ItemID: "i2", Status: model.StatusConfirmed},
		{ArrivedVehicleID: "a1", ItemID: "i3", Status: model.StatusMissing},
		{ArrivedVehicleID: "a2", ItemID: "i4", Status: model.StatusPending},
	}, []model.Photo{
		{ID: "p1", ArrivedVehicleID: "a1", ItemID: strPtr("i1")},
		{ID: "p2", ArrivedVehicleID: "a1", ItemID: strPtr("i1")},
		{ID: "p3", ArrivedVehicleID: "a1"},
	})

	assert.Equal(t, Counts{Confirmed: 2, Missing: 1}, l.Counts("a1"))
	assert.Equal(t, 3, l.Counts("a1").Total())
	assert.Equal(t, Counts{Pending: 1}, l.Counts("a2"))
	assert.Equal(t, []string{"i1", "i2", "i3"}, l.ItemIDs("a1"))

	photos := l.Photos("a1", "i1")
	if assert.Len(t, photos, 2) {
		assert.Equal(t, "p1", photos[0].ID)
		assert.Equal(t, "p2", photos[1].ID)
	}
	assert.Equal(t, 1, l.PhotoCount("a1", ""))
	assert.Zero(t, l.PhotoCount("a2", "i4"))
}

func TestLedger_MovedOutAndConfirmedOn(t *testing.T) {
	l := Build([]model.Confirmation{
		{ArrivedVehicleID: "a2", ItemID: "i1", Status: model.StatusAdded, SourceVehicleID: strPtr("v1"), SourceVehicleCode: strPtr("V-1")},
		{ArrivedVehicleID: "a3", ItemID: "i9", Status: model.StatusAdded},
		{ArrivedVehicleID: "a3", ItemID: "i2", Status: model.StatusConfirmed},
	}, nil)

	moved := l.MovedOut("v1")
	if assert.Len(t, moved, 1) {
		assert.Equal(t, "i1", moved[0].ItemID)
		assert.Equal(t, "a2", moved[0].ArrivedVehicleID)
	}
	assert.Empty(t, l.MovedOut("v2"))

	arrivalID, ok := l.ConfirmedOn("i2", "a1")
	assert.True(t, ok)
	assert.Equal(t, "a3", arrivalID)
	_, ok = l.ConfirmedOn("i2", "a3")
	assert.False(t, ok)
}

func TestEmpty(t *testing.T) {
	l := Empty()
	assert.Equal(t, Counts{}, l.Counts("a1"))
	assert.Nil(t, l.MovedOut("v1"))
}
