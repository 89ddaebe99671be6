package schema

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/hrsync/internal/domain"
)

var opts = Options{Tolerance: 0.5}

func fp(rows int, cols ...string) *Fingerprint {
	f := ComputeFingerprint(cols, rows)
	return &f
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name        string
		previous    *Fingerprint
		current     *Fingerprint
		opts        Options
		want        domain.Classification
		wantAdded   []string
		wantRemoved []string
	}{
		{"identical", fp(100, "id", "name"), fp(100, "id", "name"), opts, domain.ClassificationUnchanged, nil, nil},
		{"small drop within tolerance", fp(100, "id", "name"), fp(60, "id", "name"), opts, domain.ClassificationUnchanged, nil, nil},
		{"exactly at tolerance", fp(100, "id", "name"), fp(50, "id", "name"), opts, domain.ClassificationUnchanged, nil, nil},
		{"drop beyond tolerance", fp(100, "id", "name"), fp(49, "id", "name"), opts, domain.ClassificationBreaking, nil, nil},
		{"growth", fp(10, "id"), fp(1000, "id"), opts, domain.ClassificationUnchanged, nil, nil},
		{"new column", fp(10, "id", "name"), fp(10, "id", "name", "dept"), opts, domain.ClassificationAdditive, []string{"dept"}, nil},
		{"new column and reorder", fp(10, "id", "name"), fp(10, "dept", "name", "id"), opts, domain.ClassificationAdditive, []string{"dept"}, nil},
		{"reorder only", fp(10, "id", "name"), fp(10, "name", "id"), opts, domain.ClassificationAdditive, nil, nil},
		{"column removed", fp(10, "id", "name", "dept"), fp(10, "id", "name"), opts, domain.ClassificationBreaking, nil, []string{"dept"}},
		{"renamed", fp(10, "id", "name"), fp(10, "id", "nombre"), opts, domain.ClassificationBreaking, []string{"nombre"}, []string{"name"}},
		{"empty with same columns", fp(10, "id", "name"), fp(0, "id", "name"), opts, domain.ClassificationBreaking, nil, nil},
		{"empty previous, rows now", fp(0, "id"), fp(5, "id"), opts, domain.ClassificationUnchanged, nil, nil},
		{"first run", nil, fp(10, "id"), opts, domain.ClassificationUnchanged, []string{"id"}, nil},
		{"first run requiring baseline", nil, fp(10, "id"), Options{Tolerance: 0.5, RequireBaseline: true}, domain.ClassificationBreaking, []string{"id"}, nil},
		{"first run empty", nil, fp(0, "id"), opts, domain.ClassificationBreaking, []string{"id"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Diff(tt.previous, *tt.current, tt.opts)
			assert.Equal(t, tt.want, res.Classification, "reasons: %v", res.Reasons)
			assert.Equal(t, tt.wantAdded, res.Added)
			assert.Equal(t, tt.wantRemoved, res.Removed)
			assert.Equal(t, tt.previous == nil, res.FirstRun)
		})
	}
}

func TestDiff_ZeroToleranceFallsBackToDefault(t *testing.T) {
	res := Diff(fp(100, "id"), *fp(60, "id"), Options{})
	assert.Equal(t, domain.ClassificationUnchanged, res.Classification)
}

func randomColumns(r *rand.Rand, n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("c%d_%d", i, r.Intn(1000))
	}
	return cols
}

func TestDiff_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		cols := randomColumns(r, 1+r.Intn(8))
		rows := 1 + r.Intn(1000)
		prev := ComputeFingerprint(cols, rows)

		// Same ordered columns, row count within tolerance.
		within := rows - r.Intn(rows/2+1)
		if within < 1 {
			within = 1
		}
		if float64(within) >= float64(rows)*0.5 {
			res := Diff(&prev, ComputeFingerprint(cols, within), opts)
			require.Equal(t, domain.ClassificationUnchanged, res.Classification, "cols=%v rows=%d->%d", cols, rows, within)
		}

		// Strict superset.
		extra := append(append([]string{}, cols...), "extra_"+cols[0])
		r.Shuffle(len(extra), func(a, b int) { extra[a], extra[b] = extra[b], extra[a] })
		res := Diff(&prev, ComputeFingerprint(extra, rows), opts)
		require.Equal(t, domain.ClassificationAdditive, res.Classification, "superset %v of %v", extra, cols)

		// Any missing previous column, regardless of additions.
		missing := append([]string{}, cols[1:]...)
		missing = append(missing, "added_a", "added_b")
		res = Diff(&prev, ComputeFingerprint(missing, rows), opts)
		require.Equal(t, domain.ClassificationBreaking, res.Classification)
		require.Contains(t, res.Removed, cols[0])

		// Zero rows always breaking.
		res = Diff(&prev, ComputeFingerprint(cols, 0), opts)
		require.Equal(t, domain.ClassificationBreaking, res.Classification)
		require.True(t, res.Empty)
	}
}

func TestComputeFingerprint_Copies(t *testing.T) {
	cols := []string{"a", "b"}
	f := ComputeFingerprint(cols, 1)
	cols[0] = "z"
	assert.Equal(t, []string{"a", "b"}, f.Columns)
	assert.Equal(t, 1, f.RowCount)
}

func TestFromSnapshot(t *testing.T) {
	assert.Nil(t, FromSnapshot(nil))
	got := FromSnapshot(&domain.FileStructureSnapshot{Columns: domain.StringArray{"id"}, RowCount: 3})
	require.NotNil(t, got)
	assert.Equal(t, Fingerprint{Columns: []string{"id"}, RowCount: 3}, *got)
}
