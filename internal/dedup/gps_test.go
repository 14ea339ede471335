package dedup

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGPSDuplicates(t *testing.T) {
	tests := []struct {
		name          string
		names         []string
		wantDups      []int
		wantMalformed []string
	}{
		{
			name: "within tolerance removes later",
			names: []string{
				"a_lat_50.0000000_lon_14.0000000_x.jpg",
				"b_lat_50.0000005_lon_14.0000005_x.jpg",
			},
			wantDups: []int{1},
		},
		{
			name: "outside tolerance keeps both",
			names: []string{
				"a_lat_50.00000_lon_14.00000_x.jpg",
				"b_lat_50.00001_lon_14.00001_x.jpg",
			},
		},
		{
			name: "only one axis close",
			names: []string{
				"a_lat_50.0_lon_14.0_x.jpg",
				"b_lat_50.0_lon_15.0_x.jpg",
			},
		},
		{
			name: "cluster keeps first",
			names: []string{
				"a_lat_1_lon_1_x.jpg",
				"b_lat_1_lon_1_x.jpg",
				"c_lat_1_lon_1_x.jpg",
			},
			wantDups: []int{1, 2},
		},
		{
			name: "out of range coordinates ignored",
			names: []string{
				"a_lat_2000_lon_1_x.jpg",
				"b_lat_2000_lon_1_x.jpg",
			},
		},
		{
			name: "malformed names reported",
			names: []string{
				"a_lat_1_lon_1_x.jpg",
				"IMG_0001.jpg",
				"b_lat_1_lon_1_x.jpg",
			},
			wantDups:      []int{2},
			wantMalformed: []string{"IMG_0001.jpg"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dups, malformed, err := gpsDuplicates(context.Background(), tc.names, 1e-6, 4)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.wantDups, dups); diff != "" {
				t.Errorf("dups mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantMalformed, malformed); diff != "" {
				t.Errorf("malformed mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
