package source

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchFile(t *testing.T) {
	base := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)
	files := []FileInfo{
		{Name: "Validacion Alta de empleados.xls", ModifiedAt: base},
		{Name: "Validacion Alta de empleados (1).xlsx", ModifiedAt: base.Add(time.Hour)},
		{Name: "MotivosBaja.csv", ModifiedAt: base},
		{Name: "Prenomina Horizontal.csv", ModifiedAt: base},
		{Name: "prenomina notes.pdf", ModifiedAt: base.Add(2 * time.Hour)},
	}

	tests := []struct {
		name     string
		patterns []string
		want     string
	}{
		{"newest wins", []string{"validacion alta", "empleados"}, "Validacion Alta de empleados (1).xlsx"},
		{"case insensitive", []string{"MOTIVOS", "baja"}, "MotivosBaja.csv"},
		{"unsupported extension ignored", []string{"prenomina"}, "Prenomina Horizontal.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchFile(files, tt.patterns)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestMatchFile_NotFound(t *testing.T) {
	_, err := MatchFile([]FileInfo{{Name: "other.csv"}}, []string{"prenomina"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConnectionError(err))

	_, err = MatchFile([]FileInfo{{Name: "other.csv"}}, nil)
	assert.True(t, IsNotFound(err), "no patterns never matches")
}

func TestConnectionError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("dial tcp: refused")
	err := fmt.Errorf("list: %w", &ConnectionError{Op: "list", Err: inner})
	assert.True(t, IsConnectionError(err))
	assert.ErrorIs(t, err, inner)
}
