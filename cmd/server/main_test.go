package main

import (
	"bytes"
	"log/slog"
	"testing"

	"ecosystem-api/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportValidation(t *testing.T) {
	tests := []struct {
		name      string
		result    *config.ValidationResult
		wantErr   bool
		wantInLog []string
	}{
		{
			name:   "clean result",
			result: &config.ValidationResult{},
		},
		{
			name: "warnings only",
			result: &config.ValidationResult{
				Warnings: []config.ValidationWarning{{Field: "auth.jwt_secret", Message: "secret is short"}},
			},
			wantInLog: []string{"configuration warning", "auth.jwt_secret"},
		},
		{
			name: "errors fail",
			result: &config.ValidationResult{
				Errors: []config.ValidationError{{Field: "database.port", Message: "out of range", Hint: "use 1-65535"}},
			},
			wantErr:   true,
			wantInLog: []string{"configuration error", "database.port", "use 1-65535"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			err := reportValidation(logger, tt.result)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			for _, want := range tt.wantInLog {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "ecosystem-api dev (none)", versionString())
}
