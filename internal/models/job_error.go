package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JobError is one recorded error on an import or deletion job. Row is zero
// for job-level failures (file missing, batch load failure), in which case
// Stacktrace carries the captured stack text.
type JobError struct {
	Row        int    `json:"row,omitempty"`
	Message    string `json:"error"`
	Stacktrace string `json:"stacktrace,omitempty"`
}

// JobErrorList is stored as a jsonb column on job rows.
type JobErrorList []JobError

func (l JobErrorList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job errors: %w", err)
	}
	return string(data), nil
}

func (l *JobErrorList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported source type %T for job errors", src)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}
