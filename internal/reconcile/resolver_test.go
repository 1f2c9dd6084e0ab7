package reconcile

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-delivery-backend/internal/blob"
	"site-delivery-backend/internal/model"
)

func TestSession_ResolveUnassigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.session.ReportUnassigned(ctx, Report{AssemblyMark: " B ", Location: "Yard 3", Notes: "under tarp"}, "site")
	require.NoError(t, err)
	assert.Equal(t, "B", report.AssemblyMark)
	assert.Equal(t, "site", report.ReportedBy)
	assert.Equal(t, testNow, report.ReportedAt)

	matches, err := f.session.MatchUnassigned(ctx, report.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, f.id("g3"), matches[0].ID)

	arrival, err := f.session.ResolveUnassigned(ctx, report.ID, f.id("g3"), "lead")
	require.NoError(t, err)
	assert.Equal(t, f.v1.ID, arrival.VehicleID)
	assert.Equal(t, "2026-10-15", arrival.ArrivalDate)

	rows := f.rowsFor(t, arrival.ID)
	require.Len(t, rows, 3)
	row := findRow(rows, f.id("g3"))
	assert.Equal(t, model.StatusConfirmed, row.Status)
	assert.Equal(t, "lead", row.ConfirmedBy)
	assert.Contains(t, row.Note, "Yard 3")
	assert.Contains(t, row.Note, "under tarp")

	stored, err := f.store.GetUnassigned(ctx, "p1", report.ID)
	require.NoError(t, err)
	assert.True(t, stored.Resolved)
	require.NotNil(t, stored.ItemID)
	assert.Equal(t, f.id("g3"), *stored.ItemID)

	_, err = f.session.ResolveUnassigned(ctx, report.ID, f.id("g3"), "lead")
	assert.ErrorIs(t, err, ErrReportResolved)
}

func TestSession_ResolveUsesLatestArrival(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	latest := f.start(t, f.v1.ID, "2026-10-17")

	itemID := f.id("g1")
	report, err := f.session.ReportUnassigned(ctx, Report{ItemID: &itemID}, "site")
	require.NoError(t, err)
	assert.Equal(t, "A", report.AssemblyMark)

	matches, err := f.session.MatchUnassigned(ctx, report.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	arrival, err := f.session.ResolveUnassigned(ctx, report.ID, itemID, "lead")
	require.NoError(t, err)
	assert.Equal(t, latest.ID, arrival.ID)
	assert.Equal(t, model.StatusConfirmed, f.session.Ledger().Status(latest.ID, itemID))
	assert.Equal(t, "Found unassigned on site", f.session.Ledger().Note(latest.ID, itemID))

	open, err := f.session.ListUnassigned(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, open[0].Resolved)
}

func TestSession_ReportWithoutMatchStaysOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.session.ReportUnassigned(ctx, Report{AssemblyMark: "QX-1"}, "site")
	require.NoError(t, err)
	matches, err := f.session.MatchUnassigned(ctx, report.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = f.session.ReportUnassigned(ctx, Report{}, "site")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSession_Photos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	arrival := f.start(t, f.v1.ID, "2026-10-17")
	itemID := f.id("g1")

	photo, err := f.session.UploadPhoto(ctx, arrival.ID, Upload{
		ItemID:      &itemID,
		FileName:    "dent 1.jpg",
		ContentType: "image/jpeg",
		Size:        5,
		Body:        strings.NewReader("jpeg!"),
	}, "anna")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(photo.Path, "p1/"+arrival.ID+"/"+itemID+"/"), photo.Path)
	assert.True(t, strings.HasSuffix(photo.Path, "_dent_1.jpg"), photo.Path)
	assert.Equal(t, "https://cdn.example.com/photos/"+photo.Path, photo.URL)

	_, err = f.session.UploadPhoto(ctx, arrival.ID, Upload{FileName: "overview.png", Body: strings.NewReader("png")}, "anna")
	require.NoError(t, err)

	assert.Len(t, f.session.Photos(arrival.ID, itemID), 1)
	assert.Len(t, f.session.Photos(arrival.ID, ""), 1)
	assert.Equal(t, 1, f.session.Ledger().PhotoCount(arrival.ID, itemID))
	assert.Equal(t, 2, f.blobs.Len())

	var buf bytes.Buffer
	got, err := f.session.OpenPhoto(ctx, photo.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, photo.ID, got.ID)
	assert.Equal(t, "jpeg!", buf.String())

	require.NoError(t, f.session.DeletePhoto(ctx, photo.ID))
	assert.Empty(t, f.session.Photos(arrival.ID, itemID))
	assert.Equal(t, 1, f.blobs.Len())

	_, err = f.session.OpenPhoto(ctx, photo.ID, &buf)
	assert.ErrorIs(t, err, ErrNotFound)

	missing := "no-such-item"
	_, err = f.session.UploadPhoto(ctx, arrival.ID, Upload{ItemID: &missing, FileName: "x.jpg", Body: strings.NewReader("x")}, "anna")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, f.blobs.Len())
}

func TestSession_OpenPhotoWithoutBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	arrival := f.start(t, f.v1.ID, "2026-10-17")

	photo := &model.Photo{ProjectID: "p1", ArrivedVehicleID: arrival.ID, Path: "p1/gone.jpg"}
	require.NoError(t, f.store.CreatePhoto(ctx, photo))

	var buf bytes.Buffer
	_, err := f.session.OpenPhoto(ctx, photo.ID, &buf)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}
