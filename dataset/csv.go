package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

// ReadCSV はヘッダー付きCSVから指定列を読み込み、テーブルとラベルを返します。
//
// パラメータ:
//   - r: CSV入力（1行目はヘッダー）
//   - features: 読み込む特徴量列（この順序でテーブルの列になる）
//   - label: ラベル列名（整数値であること）
//
// 戻り値:
//   - *Table: 特徴量テーブル
//   - []int: ラベル
//   - error: 列が見つからない場合は ErrSchemaMismatch、数値でないセルは ValueError
func ReadCSV(r io.Reader, features []string, label string) (*Table, []int, error) {
	if err := validateNames(features); err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, perrors.Wrap(perrors.ErrEmptyInput, "read csv header")
		}
		return nil, nil, perrors.Wrap(err, "read csv header")
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	cols := make([]int, len(features))
	var missing []string
	for j, f := range features {
		i, ok := index[f]
		if !ok {
			missing = append(missing, f)
			continue
		}
		cols[j] = i
	}
	labelCol, ok := index[label]
	if !ok {
		missing = append(missing, label)
	}
	if len(missing) > 0 {
		return nil, nil, perrors.Mark(
			perrors.NewValueError("ReadCSV", fmt.Sprintf("missing columns %v", missing)),
			perrors.ErrSchemaMismatch,
		)
	}

	var rows [][]float64
	var labels []int
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, perrors.Wrapf(err, "read csv line %d", line)
		}

		row := make([]float64, len(features))
		for j, c := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[c]), 64)
			if err != nil {
				return nil, nil, perrors.NewValueError("ReadCSV",
					fmt.Sprintf("line %d column %q: %q is not numeric", line, features[j], record[c]))
			}
			row[j] = v
		}
		y, err := parseLabel(record[labelCol])
		if err != nil {
			return nil, nil, perrors.NewValueError("ReadCSV",
				fmt.Sprintf("line %d column %q: %v", line, label, err))
		}
		rows = append(rows, row)
		labels = append(labels, y)
	}

	t, err := NewTableFromRows(features, rows)
	if err != nil {
		return nil, nil, err
	}
	return t, labels, nil
}

// parseLabel accepts "2" as well as "2.0".
func parseLabel(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not an integer class label", s)
	}
	return int(f), nil
}
