package fredsim

import (
	"bufio"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParamFile holds the key/value pairs read from a FRED-style parameter
// file (spec.md section 6): whitespace-delimited "key value" lines,
// where key may be indexed (condition[2].transmission_mode) and
// value may be a single scalar or a whitespace-delimited vector.
// Grounded on the teacher's config_parser.go/loader.go regex-based line
// scanners, generalized from the teacher's translation-table grammar to
// this format's indexed-key grammar.
type ParamFile struct {
	values map[string]string
}

var indexedKeyPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[(\d+)\]\.(.+)$`)

// ParseParamFile reads path and returns its key/value map. Blank lines
// and lines starting with '#' are comments, matching the teacher's
// convention of a leading '#' for comments in loader.go's FASTA reader.
func ParseParamFile(path string) (*ParamFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening param file %s", path)
	}
	defer f.Close()

	pf := &ParamFile{values: make(map[string]string)}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, errors.Errorf(FileParsingError, lineNo, line)
		}
		key := fields[0]
		value := strings.Join(fields[1:], " ")
		pf.values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading param file %s", path)
	}
	return pf, nil
}

// Get returns the raw string value for key, and whether it was present.
func (pf *ParamFile) Get(key string) (string, bool) {
	v, ok := pf.values[key]
	return v, ok
}

// GetIndexed returns the raw string value for an indexed key of the
// form "base[index].field" (e.g. "condition[2].transmission_mode").
func (pf *ParamFile) GetIndexed(base string, index int, field string) (string, bool) {
	return pf.Get(indexedKey(base, index, field))
}

func indexedKey(base string, index int, field string) string {
	return base + "[" + strconv.Itoa(index) + "]." + field
}

// Require returns the raw string value for key, or an error built from
// MissingRequiredKeyError if absent (spec.md section 7's configuration
// error class); the error is a plain error, not a *ConfigError.
func (pf *ParamFile) Require(key string) (string, error) {
	v, ok := pf.Get(key)
	if !ok {
		return "", errors.Errorf(MissingRequiredKeyError, key)
	}
	return v, nil
}

// Float parses key's value as a float64.
func (pf *ParamFile) Float(key string) (float64, bool, error) {
	v, ok := pf.Get(key)
	if !ok {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, true, errors.Wrapf(err, "parsing %s as float", key)
	}
	return f, true, nil
}

// Int parses key's value as an int.
func (pf *ParamFile) Int(key string) (int, bool, error) {
	v, ok := pf.Get(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, errors.Wrapf(err, "parsing %s as int", key)
	}
	return n, true, nil
}

// Vector splits key's value on whitespace into a []float64, matching
// spec.md section 6's "keys may be ... vector-valued."
func (pf *ParamFile) Vector(key string) ([]float64, error) {
	v, ok := pf.Get(key)
	if !ok {
		return nil, nil
	}
	fields := strings.Fields(v)
	out := make([]float64, len(fields))
	for i, s := range fields {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s element %d as float", key, i)
		}
		out[i] = f
	}
	return out, nil
}

// IndicesOf returns, in ascending order, every index present for a given
// base key, for callers that enumerate them (e.g. discovering how many conditions a
// parameter file declares without a separate count key).
func (pf *ParamFile) IndicesOf(base string) []int {
	seen := make(map[int]bool)
	for k := range pf.values {
		m := indexedKeyPattern.FindStringSubmatch(k)
		if m == nil || m[1] != base {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		seen[n] = true
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
