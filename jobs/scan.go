package jobs

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/buger/jsonparser"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vistable/vistable"
)

// rawDashboard defers content decoding so the structural prefilter can run
// over the stored bytes without unmarshalling every document.
type rawDashboard struct {
	ID         uuid.UUID `db:"id"`
	Name       string    `db:"name"`
	Group      string    `db:"group_name"`
	IsPreset   bool      `db:"is_preset"`
	Content    []byte    `db:"content"`
	CreateTime time.Time `db:"create_time"`
	UpdateTime time.Time `db:"update_time"`
}

// scanReferencingDashboards returns every dashboard whose content contains a
// query referencing (dsType, key). The match is structural: only entries of
// definition.queries count, never an incidental string elsewhere in the
// document.
func scanReferencingDashboards(ctx context.Context, db sqlx.QueryerContext, dsType, key string) ([]*vistable.Dashboard, error) {
	query, args, err := sq.Select("id", "name", "group_name", "is_preset", "content", "create_time", "update_time").
		From("dashboard").
		OrderBy("create_time ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []rawDashboard
	if err := sqlx.SelectContext(ctx, db, &rows, query, args...); err != nil {
		return nil, err
	}

	var out []*vistable.Dashboard
	for i := range rows {
		if !contentReferencesQuery(rows[i].Content, dsType, key) {
			continue
		}

		d := &vistable.Dashboard{
			ID:       rows[i].ID,
			Name:     rows[i].Name,
			Group:    rows[i].Group,
			IsPreset: rows[i].IsPreset,
		}
		d.CreateTime = rows[i].CreateTime
		d.UpdateTime = rows[i].UpdateTime
		if err := json.Unmarshal(rows[i].Content, &d.Content); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// contentReferencesQuery reports whether the raw content holds a
// definition.queries entry with the given type and key.
func contentReferencesQuery(content []byte, dsType, key string) bool {
	found := false
	_, err := jsonparser.ArrayEach(content, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if found || dataType != jsonparser.Object {
			return
		}
		qType, err := jsonparser.GetString(value, "type")
		if err != nil || qType != dsType {
			return
		}
		qKey, err := jsonparser.GetString(value, "key")
		if err == nil && qKey == key {
			found = true
		}
	}, "definition", "queries")
	return err == nil && found
}
