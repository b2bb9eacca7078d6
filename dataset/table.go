// Package dataset は特徴量テーブルとラベルベクトルを扱います。
//
// Table は列名付きの行列で、全ての操作は新しい Table を返し入力を変更しません。
// ラベルは []int で表し、行 i のラベルが Table の行 i に対応します。
package dataset

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

// Table は名前付き特徴量列を持つサンプルテーブルです。
// 0 行のテーブルも表現でき、その場合 Matrix() は nil を返します。
type Table struct {
	features []string
	rows     int
	x        *mat.Dense
}

// NewTable は特徴量名と行列からテーブルを作成します。x はコピーされます。
// x が nil の場合は 0 行のテーブルになります。
func NewTable(features []string, x mat.Matrix) (*Table, error) {
	if err := validateNames(features); err != nil {
		return nil, err
	}
	t := &Table{features: append([]string(nil), features...)}
	if x == nil {
		return t, nil
	}
	r, c := x.Dims()
	if c != len(features) {
		return nil, perrors.NewDimensionError("NewTable", len(features), c, 1)
	}
	t.rows = r
	if r > 0 {
		t.x = mat.DenseCopyOf(x)
	}
	return t, nil
}

// NewTableFromRows は行スライスからテーブルを作成します。
func NewTableFromRows(features []string, rows [][]float64) (*Table, error) {
	if len(rows) == 0 {
		return NewTable(features, nil)
	}
	data := make([]float64, 0, len(rows)*len(features))
	for i, row := range rows {
		if len(row) != len(features) {
			return nil, perrors.Wrapf(perrors.NewDimensionError("NewTableFromRows", len(features), len(row), 1), "row %d", i)
		}
		data = append(data, row...)
	}
	t, err := NewTable(features, nil)
	if err != nil {
		return nil, err
	}
	t.rows = len(rows)
	t.x = mat.NewDense(len(rows), len(features), data)
	return t, nil
}

func validateNames(features []string) error {
	if len(features) == 0 {
		return perrors.Mark(perrors.NewValidationError("features", "at least one feature column is required", 0), perrors.ErrSchemaMismatch)
	}
	seen := make(map[string]struct{}, len(features))
	for _, f := range features {
		if f == "" {
			return perrors.Mark(perrors.NewValidationError("features", "feature names must be non-empty", features), perrors.ErrSchemaMismatch)
		}
		if _, dup := seen[f]; dup {
			return perrors.Mark(perrors.NewValidationError("features", "duplicate feature name", f), perrors.ErrSchemaMismatch)
		}
		seen[f] = struct{}{}
	}
	return nil
}

// Rows は行数を返します。
func (t *Table) Rows() int { return t.rows }

// Cols は列数を返します。
func (t *Table) Cols() int { return len(t.features) }

// Features は列名のコピーを返します。
func (t *Table) Features() []string { return append([]string(nil), t.features...) }

// Matrix は内部行列を返します。呼び出し側は変更してはいけません。
func (t *Table) Matrix() *mat.Dense { return t.x }

// At は (i, j) の値を返します。
func (t *Table) At(i, j int) float64 { return t.x.At(i, j) }

// Row は行 i のコピーを返します。
func (t *Table) Row(i int) []float64 {
	return mat.Row(nil, i, t.x)
}

// Select は指定した行インデックスの順に行をコピーした新しいテーブルを返します。
func (t *Table) Select(indices []int) *Table {
	out := &Table{features: t.Features(), rows: len(indices)}
	if len(indices) == 0 {
		return out
	}
	cols := t.Cols()
	data := make([]float64, len(indices)*cols)
	raw := t.x.RawMatrix()
	for k, i := range indices {
		copy(data[k*cols:(k+1)*cols], raw.Data[i*raw.Stride:i*raw.Stride+cols])
	}
	out.x = mat.NewDense(len(indices), cols, data)
	return out
}

// Append は t の行の後ろに other の行を連結した新しいテーブルを返します。
// 列名と順序が一致しない場合は ErrSchemaMismatch を返します。
func (t *Table) Append(other *Table) (*Table, error) {
	if err := other.CheckSchema(t.features); err != nil {
		return nil, perrors.Wrap(err, "Append")
	}
	out := &Table{features: t.Features(), rows: t.rows + other.rows}
	if out.rows == 0 {
		return out, nil
	}
	cols := t.Cols()
	data := make([]float64, 0, out.rows*cols)
	for _, src := range []*Table{t, other} {
		if src.rows == 0 {
			continue
		}
		raw := src.x.RawMatrix()
		for i := 0; i < src.rows; i++ {
			data = append(data, raw.Data[i*raw.Stride:i*raw.Stride+cols]...)
		}
	}
	out.x = mat.NewDense(out.rows, cols, data)
	return out, nil
}

// SameSchema は列名と順序が一致する場合に true を返します。
func (t *Table) SameSchema(other *Table) bool {
	return sameNames(t.features, other.features)
}

// CheckSchema は列構成が expected と一致しない場合 ErrSchemaMismatch を返します。
func (t *Table) CheckSchema(expected []string) error {
	if sameNames(t.features, expected) {
		return nil
	}
	return perrors.Mark(
		perrors.NewValueError("CheckSchema", fmt.Sprintf("feature columns %v differ from configured %v", t.features, expected)),
		perrors.ErrSchemaMismatch,
	)
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Validate はラベル数が行数と一致し、全ての値が有限であることを確認します。
func Validate(t *Table, labels []int) error {
	if len(labels) != t.Rows() {
		return perrors.NewDimensionError("Validate", t.Rows(), len(labels), 0)
	}
	if t.Rows() == 0 {
		return nil
	}
	return perrors.CheckFinite("Validate", t.x, t.Rows(), t.Cols())
}

// ClassCounts はクラスごとの行数を返します。
func ClassCounts(labels []int) map[int]int {
	counts := make(map[int]int)
	for _, l := range labels {
		counts[l]++
	}
	return counts
}

// Classes は昇順に並んだユニークなクラスを返します。
func Classes(labels []int) []int {
	counts := ClassCounts(labels)
	classes := make([]int, 0, len(counts))
	for c := range counts {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

// LabelVec はラベルを n×1 の列ベクトルに変換します。
func LabelVec(labels []int) *mat.VecDense {
	data := make([]float64, len(labels))
	for i, l := range labels {
		data[i] = float64(l)
	}
	return mat.NewVecDense(len(labels), data)
}

// LabelsFromMatrix は n×1 の予測行列をラベルに戻します。
func LabelsFromMatrix(m mat.Matrix) []int {
	r, _ := m.Dims()
	labels := make([]int, r)
	for i := 0; i < r; i++ {
		labels[i] = int(m.At(i, 0))
	}
	return labels
}
