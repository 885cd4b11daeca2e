package aggregation

import (
	"testing"

	"MarketPulse/internal/domain/models"
)

func tick(last, prevClose float64) models.Tick {
	return models.Tick{Last: last, PrevClose: prevClose}
}

func TestBreadthScenario(t *testing.T) {
	ticks := map[string]models.Tick{
		"A": tick(101, 100),
		"B": tick(99, 100),
		"C": tick(100, 100),
	}
	got := Breadth(ticks)
	want := models.Breadth{Advancers: 1, Decliners: 1, Unchanged: 1}
	if got != want {
		t.Fatalf("breadth = %+v, want %+v", got, want)
	}
	if got.Advancers+got.Decliners+got.Unchanged != len(ticks) {
		t.Fatalf("counts do not sum to symbol count")
	}
}

func TestBreadthEmpty(t *testing.T) {
	if got := Breadth(nil); got != (models.Breadth{}) {
		t.Fatalf("expected zero breadth, got %+v", got)
	}
}

func TestVolumePrefersExplicitCounters(t *testing.T) {
	ticks := map[string]models.Tick{
		"A": {Last: 101, PrevClose: 100, Volume: 1000, UpVolume: 300, DownVolume: 100},
		"B": {Last: 99, PrevClose: 100, Volume: 500},
		"C": {Last: 102, PrevClose: 100, Volume: 200},
		"D": {Last: 100, PrevClose: 100, Volume: 50},
	}
	got := Volume(ticks)
	want := models.Volume{Total: 1750, Up: 500, Down: 600}
	if got != want {
		t.Fatalf("volume = %+v, want %+v", got, want)
	}
	if th := Thrust(got); th != 0.4545 {
		t.Fatalf("thrust = %v, want 0.4545", th)
	}
}

func TestThrustBounds(t *testing.T) {
	if th := Thrust(models.Volume{}); th != 0 {
		t.Fatalf("thrust of empty volume = %v", th)
	}
	if th := Thrust(models.Volume{Up: 10}); th != 1 {
		t.Fatalf("thrust with no down volume = %v", th)
	}
}

func TestTRIN(t *testing.T) {
	if got := TRIN(models.Breadth{Unchanged: 3}, models.Volume{}); got != nil {
		t.Fatalf("expected nil TRIN without advancers or decliners, got %v", *got)
	}
	got := TRIN(models.Breadth{Advancers: 2, Decliners: 1}, models.Volume{Up: 400, Down: 100})
	if got == nil || *got != 0.5 {
		t.Fatalf("trin = %v, want 0.5", got)
	}
	got = TRIN(models.Breadth{Advancers: 2, Decliners: 2}, models.Volume{})
	if got == nil || *got != 1 {
		t.Fatalf("trin with zero volume = %v, want 1", got)
	}
}
