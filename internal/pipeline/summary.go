package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"beliefshift/internal/display"
	"beliefshift/internal/format"
	"beliefshift/internal/trial"
)

// Rank returns 1-based ranks with ties sharing their average rank. NaN
// values are left out of the ranking and get a NaN rank.
func Rank(values []float64) []float64 {
	idx := make([]int, 0, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, len(values))
	for i := range ranks {
		ranks[i] = math.NaN()
	}
	for lo := 0; lo < len(idx); {
		hi := lo + 1
		for hi < len(idx) && values[idx[hi]] == values[idx[lo]] {
			hi++
		}
		avg := float64(lo+1+hi) / 2
		for _, j := range idx[lo:hi] {
			ranks[j] = avg
		}
		lo = hi
	}
	return ranks
}

func column(records []Record, name string) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		v, ok := r.Float(name)
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// RankDiffs ranks the relevance column and each named column across records,
// storing <col>_rank and <col>_rank_diff (column rank minus relevance rank).
// The relevance rank is stored as <relevance>_rank. Every record must carry
// a relevance value.
func RankDiffs(records []Record, relevance string, columns []string) error {
	rel := column(records, relevance)
	for i, v := range rel {
		if math.IsNaN(v) {
			return &trial.RowError{Row: i, Column: relevance, Err: trial.ErrMissingRelevance}
		}
	}
	relRank := Rank(rel)
	for i := range records {
		records[i].Set(relevance+"_rank", relRank[i])
	}
	for _, c := range columns {
		ranks := Rank(column(records, c))
		for i := range records {
			records[i].Set(c+"_rank", ranks[i])
			records[i].Set(c+"_rank_diff", ranks[i]-relRank[i])
		}
	}
	return nil
}

// Stats describes the finite values of one column within a group.
type Stats struct {
	Count int
	Min   float64
	Q25   float64
	Mean  float64
	Q50   float64
	Q75   float64
	Max   float64
}

func describe(values []float64) Stats {
	var x []float64
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			x = append(x, v)
		}
	}
	if len(x) == 0 {
		nan := math.NaN()
		return Stats{Min: nan, Q25: nan, Mean: nan, Q50: nan, Q75: nan, Max: nan}
	}
	sort.Float64s(x)
	return Stats{
		Count: len(x),
		Min:   x[0],
		Q25:   stat.Quantile(0.25, stat.LinInterp, x, nil),
		Mean:  stat.Mean(x, nil),
		Q50:   stat.Quantile(0.5, stat.LinInterp, x, nil),
		Q75:   stat.Quantile(0.75, stat.LinInterp, x, nil),
		Max:   x[len(x)-1],
	}
}

// Group is the summary of the records sharing one key.
type Group struct {
	Key   []string
	Size  int
	Stats map[string]Stats
	rows  []int
}

// Label joins the key values with "/".
func (g Group) Label() string {
	if len(g.Key) == 0 {
		return "all"
	}
	return strings.Join(g.Key, "/")
}

func groupKey(r Record, groupBy []string) []string {
	key := make([]string, len(groupBy))
	for i, g := range groupBy {
		key[i] = r.String(g)
	}
	return key
}

// Summarize groups records by the groupBy fields (all records form one group
// when groupBy is empty) and describes each column per group. Groups are
// ordered by key.
func Summarize(records []Record, columns, groupBy []string) []Group {
	byKey := map[string]*Group{}
	var order []*Group
	for i, r := range records {
		key := groupKey(r, groupBy)
		id := strings.Join(key, "\x00")
		g, ok := byKey[id]
		if !ok {
			g = &Group{Key: key, Stats: map[string]Stats{}}
			byKey[id] = g
			order = append(order, g)
		}
		g.Size++
		g.rows = append(g.rows, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lessKey(order[a].Key, order[b].Key)
	})

	out := make([]Group, len(order))
	for gi, g := range order {
		for _, c := range columns {
			vals := make([]float64, len(g.rows))
			for j, row := range g.rows {
				v, ok := records[row].Float(c)
				if !ok {
					v = math.NaN()
				}
				vals[j] = v
			}
			g.Stats[c] = describe(vals)
		}
		out[gi] = *g
	}
	return out
}

func lessKey(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// GroupMeans stores <col>_mean on every record: the mean of col over the
// record's group.
func GroupMeans(records []Record, columns, groupBy []string) {
	for _, g := range Summarize(records, columns, groupBy) {
		for _, row := range g.rows {
			for _, c := range columns {
				records[row].Set(c+"_mean", g.Stats[c].Mean)
			}
		}
	}
}

// SummaryTable renders one row per group and column. Column names are
// humanized except in CSV.
func SummaryTable(groups []Group, groupBy, columns []string, m format.Mode) string {
	tb := format.NewTable(m)
	header := []string{"group"}
	if len(groupBy) > 0 {
		header[0] = strings.Join(groupBy, "/")
	}
	header = append(header, "column", "count", "min", "q25", "mean", "q50", "q75", "max")
	tb.Header(header...)
	for _, g := range groups {
		for _, c := range columns {
			s := g.Stats[c]
			name := c
			if m != format.CSV {
				name = display.Column(c)
			}
			tb.Row(g.Label(), name, s.Count, s.Min, s.Q25, s.Mean, s.Q50, s.Q75, s.Max)
		}
	}
	if m != format.CSV {
		tb.Footer("", fmt.Sprintf("%d groups", len(groups)))
	}
	return tb.String()
}
