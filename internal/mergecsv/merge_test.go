package mergecsv

import (
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/envlake/envlake/internal/dataset"
)

func loadDataset(t *testing.T, name, csv string) *dataset.Dataset {
	t.Helper()
	df := dataframe.ReadCSV(strings.NewReader(csv),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Error() != nil {
		t.Fatalf("failed to load test CSV: %v", df.Error())
	}
	return &dataset.Dataset{Name: name, DF: df}
}

func TestMonthlyInnerJoin(t *testing.T) {
	left := loadDataset(t, "epa",
		"Date,O3_ug_m3\n2020-01-01,80\n2020-02-01,90\n2020-03-01,85\n")
	right := loadDataset(t, "power",
		"Date,T2M,PRECTOTCORR\n2020-02-01,5.0,30\n2020-03-01,8.0,40\n2020-04-01,12.0,50\n")

	res, err := Monthly(left, right)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if res.Dataset.Rows() != 2 {
		t.Fatalf("merged rows = %d, want 2 (intersection)", res.Dataset.Rows())
	}
	for _, c := range []string{"date", "O3_ug_m3", "T2M", "PRECTOTCORR"} {
		if !containsStr(res.Dataset.Columns(), c) {
			t.Errorf("merged dataset missing column %q (have %v)", c, res.Dataset.Columns())
		}
	}
}

func TestMonthlyDropsBadDates(t *testing.T) {
	left := loadDataset(t, "epa", "Date,v\n2020-01-01,1\nbogus,2\n")
	right := loadDataset(t, "power", "Date,w\n2020-01-01,3\n")

	res, err := Monthly(left, right)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if res.DroppedLeft != 1 || res.DroppedRight != 0 {
		t.Errorf("dropped = %d/%d, want 1/0", res.DroppedLeft, res.DroppedRight)
	}
	if res.Dataset.Rows() != 1 {
		t.Errorf("merged rows = %d, want 1", res.Dataset.Rows())
	}
}

func TestMonthlyRenamesCollidingColumns(t *testing.T) {
	left := loadDataset(t, "a", "Date,value\n2020-01-01,1\n")
	right := loadDataset(t, "b", "Date,value\n2020-01-01,2\n")

	res, err := Monthly(left, right)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if !containsStr(res.Dataset.Columns(), "value") || !containsStr(res.Dataset.Columns(), "value_2") {
		t.Errorf("columns = %v, want value and value_2", res.Dataset.Columns())
	}
}

func TestJoinYearly(t *testing.T) {
	ds := loadDataset(t, "merged",
		"date,value\n2019-06-01,1\n2020-06-01,2\n2021-06-01,3\n")
	attrs := loadDataset(t, "landcover",
		"Year,forest_pct\n2019,41\n2020,39\n")

	if err := JoinYearly(ds, attrs); err != nil {
		t.Fatalf("JoinYearly: %v", err)
	}
	// Left join: all three monthly rows survive, 2021 without attributes.
	if ds.Rows() != 3 {
		t.Fatalf("rows = %d, want 3", ds.Rows())
	}
	if !containsStr(ds.Columns(), "forest_pct") {
		t.Errorf("columns = %v, want forest_pct", ds.Columns())
	}
	missing := MissingCounts(ds)
	if missing["forest_pct"] != 1 {
		t.Errorf("missing forest_pct = %d, want 1", missing["forest_pct"])
	}
}
