package audit

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"
)

// WriteCSV serialises audit records for compliance export.
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"At", "Entity", "Entity ID", "Action", "Actor", "Before", "After"}); err != nil {
		return err
	}
	for _, rec := range records {
		actor := "system"
		if rec.ActorID != nil {
			actor = strconv.FormatInt(*rec.ActorID, 10)
		}
		if err := writer.Write([]string{
			rec.At.Format(time.RFC3339),
			rec.EntityType,
			rec.EntityID,
			string(rec.Action),
			actor,
			compactJSON(rec.Before),
			compactJSON(rec.After),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func compactJSON(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}
