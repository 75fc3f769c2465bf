package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"time"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// collections are checked in this order. Critical ones fail the run on any drift.
var collections = []target{
	{Name: models.CollectionUsers, Critical: true},
	{Name: models.CollectionStudents, Critical: true},
	{Name: models.CollectionTeachers, Critical: true},
	{Name: models.CollectionStaff, Critical: true},
	{Name: models.CollectionFees, Critical: true},
	{Name: models.CollectionGrades, Critical: true},
	{Name: models.CollectionTimetables},
	{Name: models.CollectionSchedules},
	{Name: models.CollectionEvents},
	{Name: models.CollectionNotices},
	{Name: models.CollectionLeaves},
	{Name: models.CollectionAttendance},
	{Name: models.CollectionMessages},
}

type target struct {
	Name     string
	Critical bool
}

type comparison struct {
	Target         target
	SourceCount    int
	TargetCount    int
	Missing        []string
	Extra          []string
	Changed        []string
	Error          error
	DurationSource time.Duration
	DurationTarget time.Duration
}

func (c comparison) drifted() bool {
	return c.Error != nil || len(c.Missing) > 0 || len(c.Extra) > 0 || len(c.Changed) > 0
}

func compareCollection(ctx context.Context, source, dest docstore.Gateway, tgt target) comparison {
	comp := comparison{Target: tgt}

	start := time.Now()
	srcDocs, err := source.FetchAll(ctx, tgt.Name)
	comp.DurationSource = time.Since(start)
	if err != nil {
		comp.Error = fmt.Errorf("source fetch failed: %w", err)
		return comp
	}
	start = time.Now()
	dstDocs, err := dest.FetchAll(ctx, tgt.Name)
	comp.DurationTarget = time.Since(start)
	if err != nil {
		comp.Error = fmt.Errorf("target fetch failed: %w", err)
		return comp
	}
	comp.SourceCount, comp.TargetCount = len(srcDocs), len(dstDocs)

	byID := make(map[string]docstore.Document, len(dstDocs))
	for _, d := range dstDocs {
		byID[d.ID] = d
	}
	for _, s := range srcDocs {
		d, ok := byID[s.ID]
		if !ok {
			comp.Missing = append(comp.Missing, s.ID)
			continue
		}
		delete(byID, s.ID)
		if !bodiesEqual(s.Data, d.Data) {
			comp.Changed = append(comp.Changed, s.ID)
		}
	}
	for id := range byID {
		comp.Extra = append(comp.Extra, id)
	}
	sort.Strings(comp.Missing)
	sort.Strings(comp.Extra)
	sort.Strings(comp.Changed)
	return comp
}

func bodiesEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	normalize(&aj)
	normalize(&bj)
	return reflect.DeepEqual(aj, bj)
}

// normalize folds integral floats so 12 and 12.0 compare equal across backends.
func normalize(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			normalize(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func printReport(w io.Writer, results []comparison) {
	fmt.Fprintln(w, "Snapshot Compare Report")
	fmt.Fprintln(w, "=======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.drifted() {
			status = "DIFF"
		}
		fmt.Fprintf(w, "[%s] %s\n", status, res.Target.Name)
		if res.Error != nil {
			fmt.Fprintf(w, "  Error: %v\n", res.Error)
			continue
		}
		fmt.Fprintf(w, "  Source: %d docs (%s) | Target: %d docs (%s)\n", res.SourceCount, res.DurationSource, res.TargetCount, res.DurationTarget)
		if res.drifted() {
			fmt.Fprintf(w, "  Missing: %v | Extra: %v | Changed: %v | Critical: %t\n", res.Missing, res.Extra, res.Changed, res.Target.Critical)
		}
	}
}
