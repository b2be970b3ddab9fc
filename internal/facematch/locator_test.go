package facematch

import (
	"context"
	"errors"
	"image"
	"iter"
	"slices"
	"testing"
)

func TestSingleUse(t *testing.T) {
	regions := []FaceRegion{{X: 1, Y: 1, Width: 10, Height: 10}, {X: 20, Y: 20, Width: 5, Height: 5}}
	seq := SingleUse(regions)

	if got := slices.Collect(seq); len(got) != 2 {
		t.Fatalf("expected 2 regions on first range, got %d", len(got))
	}
	if got := slices.Collect(seq); len(got) != 0 {
		t.Errorf("expected nothing on second range, got %d", len(got))
	}
}

func TestSingleUse_EarlyStop(t *testing.T) {
	seq := SingleUse([]FaceRegion{{Width: 1, Height: 1}, {Width: 2, Height: 2}})
	for range seq {
		break
	}
	if got := slices.Collect(seq); len(got) != 0 {
		t.Errorf("expected sequence consumed after early stop, got %d", len(got))
	}
}

func TestStaticLocator(t *testing.T) {
	loc := StaticLocator{Detections: []Detection{
		{Region: FaceRegion{X: 10, Y: 10, Width: 50, Height: 50}, Score: 0.9},
		{Region: FaceRegion{X: 12, Y: 12, Width: 50, Height: 50}, Score: 0.5}, // overlaps the first
		{Region: FaceRegion{X: 500, Y: 500, Width: 10, Height: 10}, Score: 1}, // outside
	}}
	frame := image.NewGray(image.Rect(0, 0, 200, 200))

	seq, err := loc.Locate(context.Background(), frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := slices.Collect(seq)
	want := []FaceRegion{{X: 10, Y: 10, Width: 50, Height: 50}}
	if !slices.Equal(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestStaticLocator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := StaticLocator{}.Locate(ctx, image.NewGray(image.Rect(0, 0, 10, 10)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLocatorFunc(t *testing.T) {
	var loc Locator = LocatorFunc(func(ctx context.Context, frame image.Image) (iter.Seq[FaceRegion], error) {
		return nil, &DetectionError{Err: errors.New("camera glare")}
	})
	_, err := loc.Locate(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	var detErr *DetectionError
	if !errors.As(err, &detErr) {
		t.Errorf("expected DetectionError, got %v", err)
	}
}

func TestWholeFrame(t *testing.T) {
	frame := image.NewGray(image.Rect(5, 5, 85, 65))
	seq, err := WholeFrame.Locate(context.Background(), frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := slices.Collect(seq)
	want := []FaceRegion{{X: 5, Y: 5, Width: 80, Height: 60}}
	if !slices.Equal(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	seq, err = WholeFrame.Locate(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := slices.Collect(seq); len(got) != 0 {
		t.Errorf("expected no region for an empty frame, got %+v", got)
	}
}

func TestParseStaticLocator(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		want    []FaceRegion
		wantErr bool
	}{
		{name: "single region", list: "10,20,30,40", want: []FaceRegion{{X: 10, Y: 20, Width: 30, Height: 40}}},
		{
			name: "two regions with spaces",
			list: " 0,0,50,50 ; 100, 0, 50, 50;",
			want: []FaceRegion{{Width: 50, Height: 50}, {X: 100, Width: 50, Height: 50}},
		},
		{name: "empty", list: "", wantErr: true},
		{name: "only separators", list: ";;", wantErr: true},
		{name: "three values", list: "1,2,3", wantErr: true},
		{name: "not a number", list: "1,2,3,x", wantErr: true},
		{name: "zero width", list: "1,2,0,4", wantErr: true},
		{name: "negative origin", list: "-1,2,3,4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseStaticLocator(tt.list)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", loc)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var got []FaceRegion
			for _, d := range loc.Detections {
				got = append(got, d.Region)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
