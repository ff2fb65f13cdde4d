package validate

import "testing"

func TestArgmaxPayouts(t *testing.T) {
	cases := []struct {
		name    string
		csv     string
		want    int
		wantErr bool
	}{
		{"binary yes", "1,0", 0, false},
		{"binary no", "0,1", 1, false},
		{"partial payout", "25,75", 1, false},
		{"tie keeps lowest index", "50,50", 0, false},
		{"all zero", "0,0,0", -1, false},
		{"multi outcome", "0,0,100,0", 2, false},
		{"huge numerators", "999999999999999999999999,1000000000000000000000000", 1, false},
		{"empty", "", -1, true},
		{"garbage", "1,x", -1, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := argmaxPayouts(tc.csv)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("argmaxPayouts(%q) expected error, got %d", tc.csv, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("argmaxPayouts(%q): %v", tc.csv, err)
			}
			if got != tc.want {
				t.Errorf("argmaxPayouts(%q) = %d, want %d", tc.csv, got, tc.want)
			}
		})
	}
}

func TestStatsFindings(t *testing.T) {
	// exact agreement everywhere
	if d := statsFindings(5, 3, 4, 5, 3, 4); len(d) != 0 {
		t.Errorf("consistent stats flagged: %v", d)
	}

	// lazily created markets add rows the counter never saw; that is fine
	if d := statsFindings(5, 3, 4, 5, 7, 4); len(d) != 0 {
		t.Errorf("extra market rows flagged: %v", d)
	}

	// counter above the row count means lost rows
	if d := statsFindings(5, 8, 4, 5, 3, 4); len(d) != 1 {
		t.Errorf("overcounted markets not flagged: %v", d)
	}

	// trades must match exactly, both directions
	if d := statsFindings(6, 3, 4, 5, 3, 4); len(d) != 1 {
		t.Errorf("trade mismatch not flagged: %v", d)
	}
	if d := statsFindings(4, 3, 4, 5, 3, 4); len(d) != 1 {
		t.Errorf("trade mismatch not flagged: %v", d)
	}

	// users: only an overcount is a defect
	if d := statsFindings(5, 3, 9, 5, 3, 4); len(d) != 1 {
		t.Errorf("overcounted users not flagged: %v", d)
	}
	if d := statsFindings(5, 3, 2, 5, 3, 4); len(d) != 0 {
		t.Errorf("extra user rows flagged: %v", d)
	}
}
