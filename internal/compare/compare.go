// Package compare juxtaposes two normalized datasets: schema diff, per-column
// type and null comparison, per-side numeric summaries, and identifier-keyed
// row change detection. No cross-dataset statistical test is performed; the
// output is for human inspection.
package compare

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"geoqa/internal/dataset"
	"geoqa/internal/qastats"
)

// TypePair compares the independently inferred semantic type of one shared
// column. Mismatch is set only when both sides have a defined type and they
// differ; TypeEmpty counts as undefined for this purpose.
type TypePair struct {
	Column   string
	TypeA    dataset.Type
	TypeB    dataset.Type
	Mismatch bool
}

// NullPair is the per-column null-count juxtaposition for shared columns.
type NullPair struct {
	Column string
	NullsA int
	NullsB int
}

// NumericSummary describes one numeric column on one side.
type NumericSummary struct {
	Count    int
	Nulls    int
	Distinct int
	Min      float64
	Max      float64
	Mean     float64
	Median   float64
	// StdDev is the sample standard deviation (n-1); zero when fewer than
	// two values exist.
	StdDev float64
}

// NumericPair juxtaposes summaries for a column numeric in both datasets.
type NumericPair struct {
	Column string
	A      NumericSummary
	B      NumericSummary
}

// ChangedValue is one cell that differs between the two sides of a joined row.
type ChangedValue struct {
	ID     string
	Column string
	ValueA any
	ValueB any
}

// RowDiff is the identifier-keyed change detection result. Added and Removed
// hold identifier values present on exactly one side; Changed holds cell-level
// differences over the inner join.
type RowDiff struct {
	Identifier string
	Added      []string
	Removed    []string
	Changed    []ChangedValue
}

// Result is the full comparison of two datasets and their display names.
type Result struct {
	NameA string
	NameB string

	OnlyInA     []string
	OnlyInB     []string
	SchemaEqual bool

	// StatsA/StatsB juxtapose the per-side QA summaries (rows, CRS, geometry
	// health) for the summary table.
	StatsA qastats.Stats
	StatsB qastats.Stats

	Types   []TypePair
	Nulls   []NullPair
	Numeric []NumericPair

	// RowDiff is nil when change detection was skipped; SkipReason then
	// carries the actionable explanation.
	RowDiff    *RowDiff
	SkipReason string
}

// Compare builds the full comparison. identifier may be empty, in which case
// the best eligible identifier column is chosen automatically; change
// detection is skipped with an explicit reason when none qualifies.
func Compare(a, b *dataset.Dataset, nameA, nameB, identifier string) *Result {
	res := &Result{NameA: nameA, NameB: nameB}

	res.OnlyInA = nameDifference(a.ColumnNames(), b.ColumnNames())
	res.OnlyInB = nameDifference(b.ColumnNames(), a.ColumnNames())
	res.SchemaEqual = len(res.OnlyInA) == 0 && len(res.OnlyInB) == 0

	res.StatsA = qastats.Compute(a)
	res.StatsB = qastats.Compute(b)

	shared := sharedAttrColumns(a, b)
	for _, name := range shared {
		colA, _ := a.Column(name)
		colB, _ := b.Column(name)

		ta := dataset.InferType(colA.Values)
		tb := dataset.InferType(colB.Values)
		res.Types = append(res.Types, TypePair{
			Column:   name,
			TypeA:    ta,
			TypeB:    tb,
			Mismatch: ta != dataset.TypeEmpty && tb != dataset.TypeEmpty && ta != tb,
		})

		res.Nulls = append(res.Nulls, NullPair{
			Column: name,
			NullsA: dataset.NullCount(colA.Values),
			NullsB: dataset.NullCount(colB.Values),
		})

		if ta.IsNumeric() && tb.IsNumeric() {
			res.Numeric = append(res.Numeric, NumericPair{
				Column: name,
				A:      summarize(colA.Values),
				B:      summarize(colB.Values),
			})
		}
	}

	res.RowDiff, res.SkipReason = detectChanges(a, b, shared, identifier)
	return res
}

// nameDifference returns names of xs absent from ys, preserving xs order.
func nameDifference(xs, ys []string) []string {
	in := make(map[string]bool, len(ys))
	for _, y := range ys {
		in[y] = true
	}
	var out []string
	for _, x := range xs {
		if !in[x] {
			out = append(out, x)
		}
	}
	return out
}

// sharedAttrColumns lists attribute columns present in both datasets, in A's
// column order. The geometry column is compared through QA statistics, not
// cell-wise.
func sharedAttrColumns(a, b *dataset.Dataset) []string {
	var out []string
	for _, c := range a.Attrs {
		if _, ok := b.Column(c.Name); ok {
			out = append(out, c.Name)
		}
	}
	return out
}

func summarize(values []any) NumericSummary {
	s := NumericSummary{
		Nulls:    dataset.NullCount(values),
		Distinct: dataset.DistinctCount(values),
	}

	var nums []float64
	for _, v := range values {
		if f, ok := dataset.AsFloat(v); ok {
			nums = append(nums, f)
		}
	}
	s.Count = len(nums)
	if s.Count == 0 {
		return s
	}

	sort.Float64s(nums)
	s.Min = nums[0]
	s.Max = nums[len(nums)-1]

	sum := 0.0
	for _, f := range nums {
		sum += f
	}
	s.Mean = sum / float64(len(nums))

	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		s.Median = nums[mid]
	} else {
		s.Median = (nums[mid-1] + nums[mid]) / 2
	}

	if len(nums) > 1 {
		ss := 0.0
		for _, f := range nums {
			d := f - s.Mean
			ss += d * d
		}
		s.StdDev = math.Sqrt(ss / float64(len(nums)-1))
	}
	return s
}

// preferredIdentifierNames are ranked first among eligible identifier columns.
var preferredIdentifierNames = []string{"id", "idx", "index"}

// IdentifierCandidates lists columns eligible as a change-detection key in
// BOTH datasets: every value non-null and distinct within each dataset.
// Literally named id/idx/index columns rank first, the rest follow in A's
// column order.
func IdentifierCandidates(a, b *dataset.Dataset) []string {
	eligible := func(d *dataset.Dataset, name string) bool {
		c, ok := d.Column(name)
		if !ok || len(c.Values) == 0 {
			return false
		}
		return dataset.NullCount(c.Values) == 0 && dataset.DistinctCount(c.Values) == len(c.Values)
	}

	var preferred, rest []string
	for _, c := range a.Attrs {
		if !eligible(a, c.Name) || !eligible(b, c.Name) {
			continue
		}
		if isPreferredName(c.Name) {
			preferred = append(preferred, c.Name)
		} else {
			rest = append(rest, c.Name)
		}
	}
	return append(preferred, rest...)
}

func isPreferredName(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range preferredIdentifierNames {
		if lower == p {
			return true
		}
	}
	return false
}

func detectChanges(a, b *dataset.Dataset, shared []string, identifier string) (*RowDiff, string) {
	candidates := IdentifierCandidates(a, b)

	switch {
	case identifier != "":
		found := false
		for _, c := range candidates {
			if c == identifier {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Sprintf(
				"column %q is not usable as an identifier: it must exist in both datasets with unique, non-null values",
				identifier)
		}
	case len(candidates) == 0:
		return nil, "no eligible identifier column: change detection needs a column with unique, non-null values in both datasets"
	default:
		identifier = candidates[0]
	}

	colA, _ := a.Column(identifier)
	colB, _ := b.Column(identifier)

	rowOfA := indexByKey(colA.Values)
	rowOfB := indexByKey(colB.Values)

	diff := &RowDiff{Identifier: identifier}

	// Removed: identifiers only in A, in A's row order.
	for i, v := range colA.Values {
		key := dataset.CanonicalKey(v)
		if _, ok := rowOfB[key]; !ok {
			diff.Removed = append(diff.Removed, dataset.FormatValue(colA.Values[i]))
		}
	}
	// Added: identifiers only in B, in B's row order.
	for i, v := range colB.Values {
		key := dataset.CanonicalKey(v)
		if _, ok := rowOfA[key]; !ok {
			diff.Added = append(diff.Added, dataset.FormatValue(colB.Values[i]))
		}
	}

	// Inner join: compare every other shared column; a value changed when the
	// sides are not equal and not both null.
	for i, v := range colA.Values {
		key := dataset.CanonicalKey(v)
		j, ok := rowOfB[key]
		if !ok {
			continue
		}
		for _, name := range shared {
			if name == identifier {
				continue
			}
			ca, _ := a.Column(name)
			cb, _ := b.Column(name)
			va, vb := ca.Values[i], cb.Values[j]
			if va == nil && vb == nil {
				continue
			}
			if va != nil && vb != nil && dataset.CanonicalKey(va) == dataset.CanonicalKey(vb) {
				continue
			}
			diff.Changed = append(diff.Changed, ChangedValue{
				ID:     dataset.FormatValue(v),
				Column: name,
				ValueA: va,
				ValueB: vb,
			})
		}
	}

	return diff, ""
}

func indexByKey(values []any) map[string]int {
	out := make(map[string]int, len(values))
	for i, v := range values {
		out[dataset.CanonicalKey(v)] = i
	}
	return out
}
