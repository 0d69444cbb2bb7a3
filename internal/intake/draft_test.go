package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/collections-cli/internal/model"
)

func TestAddBlankRows(t *testing.T) {
	t.Parallel()

	table := NewDraftTable()

	ids := table.AddBlankRows(3)
	require.Len(t, ids, 3)
	assert.Equal(t, 3, table.Len())

	for _, id := range ids {
		row, ok := table.Get(id)
		require.True(t, ok)
		assert.Equal(t, model.OriginManual, row.Origin)
		assert.True(t, row.Empty())
	}

	// Subsequent batches append after existing rows.
	more := table.AddBlankRows(2)
	rows := table.Rows()
	require.Len(t, rows, 5)
	assert.Equal(t, ids[0], rows[0].ID)
	assert.Equal(t, more[1], rows[4].ID)

	assert.Nil(t, table.AddBlankRows(0))
	assert.Nil(t, table.AddBlankRows(-1))
	assert.Equal(t, 5, table.Len())
}

func TestAddExtractedRowsPrepends(t *testing.T) {
	t.Parallel()

	table := NewDraftTable()
	manual := table.AddBlankRows(2)

	table.AddExtractedRows([]model.DraftRow{
		{CustomerName: "Acme GmbH", Amount: "1200.50", Origin: model.OriginManual},
		{CustomerName: "Beta Ltd", Amount: "300"},
	})

	rows := table.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, "Acme GmbH", rows[0].CustomerName)
	assert.Equal(t, "Beta Ltd", rows[1].CustomerName)
	assert.Equal(t, manual[0], rows[2].ID)

	// Origin is always forced to extracted and missing IDs are assigned.
	assert.Equal(t, model.OriginExtracted, rows[0].Origin)
	assert.Equal(t, model.OriginExtracted, rows[1].Origin)
	assert.NotEmpty(t, rows[0].ID)
	assert.NotEmpty(t, rows[1].ID)

	table.AddExtractedRows(nil)
	assert.Equal(t, 4, table.Len())
}

func TestAddRowsPreservesOrigin(t *testing.T) {
	t.Parallel()

	table := NewDraftTable()
	extracted := table.AddBlankRows(1)

	table.AddRows([]model.DraftRow{
		{CustomerName: "Acme GmbH", Origin: model.OriginManual},
		{CustomerName: "Beta Ltd", Origin: model.OriginExtracted},
		{CustomerName: "Gamma AG"},
	})

	rows := table.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, extracted[0], rows[0].ID, "rows append after existing entries")

	assert.Equal(t, model.OriginManual, rows[1].Origin)
	assert.Equal(t, model.OriginExtracted, rows[2].Origin)
	assert.Equal(t, model.OriginManual, rows[3].Origin, "missing origin defaults to manual")
	for _, r := range rows[1:] {
		assert.NotEmpty(t, r.ID)
	}
}

func TestUpdateField(t *testing.T) {
	t.Parallel()

	table := NewDraftTable()
	id := table.AddBlankRows(1)[0]

	assert.True(t, table.UpdateField(id, FieldCustomerName, "Acme"))
	assert.True(t, table.UpdateField(id, FieldAmount, "99.99"))

	row, ok := table.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Acme", row.CustomerName)
	assert.Equal(t, "99.99", row.Amount)
	assert.Equal(t, 2, row.Revision)

	assert.False(t, table.UpdateField("missing", FieldAmount, "1"))
	assert.False(t, table.UpdateField(id, DraftField("bogus"), "1"))
}

func TestUpdateFieldRev(t *testing.T) {
	t.Parallel()

	table := NewDraftTable()
	id := table.AddBlankRows(1)[0]

	require.NoError(t, table.UpdateFieldRev(id, FieldCustomerName, "Acme", 0))

	// A writer holding the pre-edit revision is rejected.
	err := table.UpdateFieldRev(id, FieldCustomerName, "Stale Co", 0)
	var stale *StaleRevisionError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, 0, stale.Expected)
	assert.Equal(t, 1, stale.Actual)

	row, _ := table.Get(id)
	assert.Equal(t, "Acme", row.CustomerName, "rejected write leaves the row untouched")

	require.NoError(t, table.UpdateFieldRev(id, FieldCustomerName, "Acme Corp", 1))
	row, _ = table.Get(id)
	assert.Equal(t, "Acme Corp", row.CustomerName)
	assert.Equal(t, 2, row.Revision)
}

func TestDeleteRow(t *testing.T) {
	t.Parallel()

	table := NewDraftTable()
	ids := table.AddBlankRows(3)

	table.DeleteRow(ids[1])
	assert.Equal(t, 2, table.Len())
	_, ok := table.Get(ids[1])
	assert.False(t, ok)

	// Deleting an absent row is a silent no-op.
	table.DeleteRow(ids[1])
	table.DeleteRow("never existed")
	assert.Equal(t, 2, table.Len())
}

func TestRowsReturnsCopy(t *testing.T) {
	t.Parallel()

	table := NewDraftTable()
	id := table.AddBlankRows(1)[0]

	rows := table.Rows()
	rows[0].CustomerName = "mutated"

	row, _ := table.Get(id)
	assert.Empty(t, row.CustomerName)
}
