package service

import (
	"strings"
	"time"

	"github.com/stockflow/stockflow-backend/pkg/errors"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	time.RFC3339,
}

// ParseDate accepts the date formats operators and scanners send. An empty
// input yields nil.
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, errors.Validation(map[string]string{
		"data_validade": "use YYYY-MM-DD, YYYY-MM-DD HH:MM:SS, DD/MM/YYYY or RFC 3339",
	})
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
