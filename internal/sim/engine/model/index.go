package model

import (
	"encoding/json"
	"fmt"
)

// Index names one of the national health metrics.
type Index int

const (
	Economy Index = iota
	Society
	Culture
	Integration
	Environment
	Science

	IndexCount
)

var indexNames = [IndexCount]string{
	"economy",
	"society",
	"culture",
	"integration",
	"environment",
	"science",
}

func AllIndices() []Index {
	out := make([]Index, 0, IndexCount)
	for i := Index(0); i < IndexCount; i++ {
		out = append(out, i)
	}
	return out
}

func (i Index) String() string {
	if i < 0 || i >= IndexCount {
		return fmt.Sprintf("index(%d)", int(i))
	}
	return indexNames[i]
}

func (i Index) Valid() bool { return i >= 0 && i < IndexCount }

func ParseIndex(s string) (Index, error) {
	for i, name := range indexNames {
		if name == s {
			return Index(i), nil
		}
	}
	return 0, fmt.Errorf("unknown index %q", s)
}

func (i Index) MarshalText() ([]byte, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("invalid index %d", int(i))
	}
	return []byte(indexNames[i]), nil
}

func (i *Index) UnmarshalText(b []byte) error {
	v, err := ParseIndex(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Indices holds one value per Index. It doubles as a delta vector.
// JSON form is an object keyed by index name.
type Indices [IndexCount]int

func UniformIndices(v int) Indices {
	var out Indices
	for i := range out {
		out[i] = v
	}
	return out
}

func IndicesFromMap(m map[string]int) (Indices, error) {
	var out Indices
	for k, v := range m {
		idx, err := ParseIndex(k)
		if err != nil {
			return out, err
		}
		out[idx] = v
	}
	return out, nil
}

func (ix Indices) Map() map[string]int {
	m := make(map[string]int, IndexCount)
	for i, v := range ix {
		m[indexNames[i]] = v
	}
	return m
}

func (ix Indices) Get(i Index) int { return ix[i] }

func (ix Indices) Add(o Indices) Indices {
	for i := range ix {
		ix[i] += o[i]
	}
	return ix
}

func (ix Indices) Sub(o Indices) Indices {
	for i := range ix {
		ix[i] -= o[i]
	}
	return ix
}

func (ix Indices) Clamp(lo, hi int) Indices {
	for i, v := range ix {
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		ix[i] = v
	}
	return ix
}

// Lowest returns the smallest value and the first index holding it.
func (ix Indices) Lowest() (Index, int) {
	best := Index(0)
	for i := Index(1); i < IndexCount; i++ {
		if ix[i] < ix[best] {
			best = i
		}
	}
	return best, ix[best]
}

func (ix Indices) IsZero() bool { return ix == Indices{} }

func (ix Indices) MarshalJSON() ([]byte, error) {
	return json.Marshal(ix.Map())
}

func (ix *Indices) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	v, err := IndicesFromMap(m)
	if err != nil {
		return err
	}
	*ix = v
	return nil
}
