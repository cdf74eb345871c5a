package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsSQLiteConflictError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "busy", err: errors.New("database table is locked (SQLITE_BUSY)"), want: true},
		{name: "locked", err: errors.New("database is locked"), want: true},
		{name: "wrapped", err: fmt.Errorf("insert application: %w", errors.New("database is locked")), want: true},
		{name: "other", err: errors.New("no such table: applications"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSQLiteConflictError(tt.err); got != tt.want {
				t.Errorf("IsSQLiteConflictError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
