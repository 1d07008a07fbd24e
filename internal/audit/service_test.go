package audit

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memRepo struct {
	records []Record
}

func (m *memRepo) ListRecords(_ context.Context, filters TimelineFilters, limit, offset int) ([]Record, error) {
	var matched []Record
	for _, rec := range m.records {
		if rec.TenantID != filters.TenantID {
			continue
		}
		if filters.EntityType != "" && rec.EntityType != filters.EntityType {
			continue
		}
		if filters.Action != "" && string(rec.Action) != filters.Action {
			continue
		}
		matched = append(matched, rec)
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func seedRecords(n int) *memRepo {
	repo := &memRepo{}
	actor := int64(7)
	for i := 0; i < n; i++ {
		repo.records = append(repo.records, Record{
			ID:         int64(i + 1),
			TenantID:   1,
			EntityType: "journal_entry",
			EntityID:   fmt.Sprintf("%d", i+1),
			Action:     ActionCreate,
			ActorID:    &actor,
			At:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		})
	}
	return repo
}

func TestTimelinePaging(t *testing.T) {
	service := NewService(seedRecords(25))

	first, err := service.Timeline(context.Background(), TimelineFilters{TenantID: 1})
	require.NoError(t, err)
	require.Len(t, first.Rows, 20)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 2, first.Paging.NextPage)
	require.Zero(t, first.Paging.PrevPage)

	second, err := service.Timeline(context.Background(), TimelineFilters{TenantID: 1, Page: 2})
	require.NoError(t, err)
	require.Len(t, second.Rows, 5)
	require.False(t, second.Paging.HasNext)
	require.Equal(t, 1, second.Paging.PrevPage)
}

func TestTimelinePageSizeClamped(t *testing.T) {
	service := NewService(seedRecords(60))

	result, err := service.Timeline(context.Background(), TimelineFilters{TenantID: 1, PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)
	require.Equal(t, 50, result.Paging.PageSize)
}

func TestTimelineFilters(t *testing.T) {
	repo := seedRecords(5)
	repo.records = append(repo.records, Record{
		ID:         100,
		TenantID:   1,
		EntityType: "book_lock",
		EntityID:   "1",
		Action:     ActionUpdate,
		At:         time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	})
	service := NewService(repo)

	result, err := service.Timeline(context.Background(), TimelineFilters{TenantID: 1, EntityType: "book_lock"})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, ActionUpdate, result.Rows[0].Action)
}

func TestRecordValidate(t *testing.T) {
	valid := Record{TenantID: 1, EntityType: "asset", EntityID: "5", Action: ActionCreate}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.EntityID = ""
	require.ErrorIs(t, missing.Validate(), ErrInvalidRecord)

	bogus := valid
	bogus.Action = "TOUCH"
	require.ErrorIs(t, bogus.Validate(), ErrInvalidRecord)
}

func TestWriteCSV(t *testing.T) {
	actor := int64(7)
	records := []Record{
		{
			TenantID:   1,
			EntityType: "journal_entry",
			EntityID:   "12",
			Action:     ActionCreate,
			ActorID:    &actor,
			After:      map[string]any{"number": 12},
			At:         time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			TenantID:   1,
			EntityType: "depreciation_schedule",
			EntityID:   "3",
			Action:     ActionSystem,
			At:         time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[1], "journal_entry")
	require.Contains(t, lines[1], ",7,")
	require.Contains(t, lines[2], "system")
}
