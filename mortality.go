package fredsim

import (
	"bufio"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MortalityTable is a fixed two-column (key, rate) lookup table, up to
// 400 rows, per spec.md section 6: male_age_table.txt / female_age_table.txt
// use a numeric (age) key looked up by binary search with linear
// interpolation between adjacent rows; hiv_mort_table.txt uses an
// encoded composite key looked up by exact match.
type MortalityTable struct {
	keys   []float64
	rates  []float64
	Interp bool // true: interpolate between adjacent rows; false: exact match
}

// LoadMortalityTable reads a whitespace "key rate" table, grounded on
// the spec.md section 6 fixed-schema description and the teacher's
// config_parser.go line-scanning idiom. Rows must already be sorted by
// key; a mis-ordered file is a MalformedTableError.
func LoadMortalityTable(path string, interp bool) (*MortalityTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening mortality table %s", path)
	}
	defer f.Close()

	t := &MortalityTable{Interp: interp}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Errorf(MalformedTableError, path, lineNo, line)
		}
		key, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, errors.Errorf(MalformedTableError, path, lineNo, line)
		}
		rate, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, errors.Errorf(MalformedTableError, path, lineNo, line)
		}
		if len(t.keys) > 0 && key < t.keys[len(t.keys)-1] {
			return nil, errors.Errorf(MalformedTableError, path, lineNo, "keys must be non-decreasing")
		}
		t.keys = append(t.keys, key)
		t.rates = append(t.rates, rate)
		if len(t.keys) > 400 {
			return nil, errors.Errorf(MalformedTableError, path, lineNo, "exceeds 400-row limit")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading mortality table %s", path)
	}
	return t, nil
}

// Lookup returns the rate for key: linear interpolation between the two
// bracketing rows when Interp is set (age tables), exact match
// otherwise (the HIV composite key), per spec.md section 6.
func (t *MortalityTable) Lookup(key float64) (float64, bool) {
	if len(t.keys) == 0 {
		return 0, false
	}
	i := sort.SearchFloat64s(t.keys, key)

	if !t.Interp {
		if i < len(t.keys) && t.keys[i] == key {
			return t.rates[i], true
		}
		return 0, false
	}

	if i == 0 {
		return t.rates[0], true
	}
	if i >= len(t.keys) {
		return t.rates[len(t.keys)-1], true
	}
	if t.keys[i] == key {
		return t.rates[i], true
	}
	lo, hi := i-1, i
	span := t.keys[hi] - t.keys[lo]
	if span <= 0 {
		return t.rates[lo], true
	}
	frac := (key - t.keys[lo]) / span
	return t.rates[lo] + frac*(t.rates[hi]-t.rates[lo]), true
}

// HIVMortalityKey encodes the composite (age_group, time_since_therapy,
// cd4_bucket, vl_bucket) lookup key spec.md section 4.4/6 describes into
// the single numeric key hiv_mort_table.txt is keyed by. Grounded on
// original_source's packed-integer encoding of the same four fields;
// each field is bounded to two decimal digits (0-99), which the HIV
// specialisation's bucket counts never approach.
func HIVMortalityKey(ageGroup, timeSinceTherapyYears, cd4Bucket, vlBucket int) float64 {
	return float64(ageGroup)*1_000_000 +
		float64(timeSinceTherapyYears)*10_000 +
		float64(cd4Bucket)*100 +
		float64(vlBucket)
}
