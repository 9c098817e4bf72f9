// Package relational implements domain.DataSource over database/sql. The
// sqlite and postgres packages supply the driver and a Dialect.
package relational

import (
	"strconv"
	"strings"
)

// Dialect captures what differs between SQL engines.
type Dialect struct {
	Name string
	// Numbered selects $1 style placeholders instead of ?.
	Numbered bool
	// FloatType is the column type of ranking values.
	FloatType string
	// UniqueViolation reports whether err is a unique constraint failure.
	UniqueViolation func(error) bool
}

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func (d Dialect) isUniqueViolation(err error) bool {
	return err != nil && d.UniqueViolation != nil && d.UniqueViolation(err)
}

func (d Dialect) floatType() string {
	if d.FloatType == "" {
		return "REAL"
	}
	return d.FloatType
}
