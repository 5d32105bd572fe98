package logic

import (
	"errors"
	"math"
	"testing"
)

const tolerance = 1e-6

func TestPPMMatchesCurve(t *testing.T) {
	ratios := []float64{0.01, 0.1, 0.25, 0.375, 0.5, 1, 1.5, 2, 10}
	for _, r := range ratios {
		want := math.Pow(10, (math.Log10(r)-0.328)/-0.55)
		got := PPM(r)
		if math.Abs(got-want) > tolerance {
			t.Errorf("PPM(%v): got %v, want %v", r, got, want)
		}
	}
}

func TestPPMKnownPoints(t *testing.T) {
	// At Rs/R0 = 10^0.328 the curve passes through 1 ppm.
	if got := PPM(math.Pow(10, 0.328)); math.Abs(got-1) > tolerance {
		t.Errorf("PPM(10^0.328): got %v, want 1", got)
	}
	if got := PPM(1); math.Abs(got-3.947877209331923) > tolerance {
		t.Errorf("PPM(1): got %v, want 3.947877", got)
	}
	if got := PPM(0.375); math.Abs(got-23.48833543990906) > tolerance {
		t.Errorf("PPM(0.375): got %v, want 23.488335", got)
	}
}

func TestPPMIsDeterministic(t *testing.T) {
	a := PPM(0.4242)
	b := PPM(0.4242)
	if a != b {
		t.Errorf("PPM not reproducible: %v != %v", a, b)
	}
}

func TestPPMZeroAndInvalidRatio(t *testing.T) {
	for _, r := range []float64{0, -1, math.NaN()} {
		got := PPM(r)
		if got != 0 {
			t.Errorf("PPM(%v): got %v, want 0", r, got)
		}
		if math.IsNaN(got) {
			t.Errorf("PPM(%v) returned NaN", r)
		}
	}
}

func TestPPMDecreasesWithRatio(t *testing.T) {
	// Less sensor resistance (lower ratio) means more alcohol.
	if !(PPM(0.2) > PPM(0.5)) {
		t.Errorf("expected PPM(0.2) > PPM(0.5), got %v <= %v", PPM(0.2), PPM(0.5))
	}
}

func TestBAC(t *testing.T) {
	for _, ppm := range []float64{0, 1, 26, 130, 2600, 23.48833543990906} {
		if got, want := BAC(ppm), ppm/2600; got != want {
			t.Errorf("BAC(%v): got %v, want %v", ppm, got, want)
		}
	}
	if got := BAC(260); math.Abs(got-0.1) > tolerance {
		t.Errorf("BAC(260): got %v, want 0.1", got)
	}
}

func TestRatio(t *testing.T) {
	got, err := Ratio(0.25, 2.0/3.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-0.375) > tolerance {
		t.Errorf("Ratio: got %v, want 0.375", got)
	}

	got, err = Ratio(0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("Ratio(0, 1): got %v, want 0", got)
	}
}

func TestRatioRequiresBaseline(t *testing.T) {
	for _, air := range []float64{0, -0.5, math.NaN()} {
		_, err := Ratio(1, air)
		if !errors.Is(err, ErrNoBaseline) {
			t.Errorf("Ratio(1, %v): expected ErrNoBaseline, got %v", air, err)
		}
	}
}

func TestFaultErrorsUnwrap(t *testing.T) {
	cause := errors.New("i2c timeout")

	var err error = &SensorFault{Phase: StateSampling, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("SensorFault should unwrap to its cause")
	}
	var sf *SensorFault
	if !errors.As(err, &sf) || sf.Phase != StateSampling {
		t.Errorf("errors.As SensorFault: got %+v", sf)
	}
	if err.Error() != "sensor fault during SAMPLING: i2c timeout" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	err = &StorageFault{Op: "log", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("StorageFault should unwrap to its cause")
	}
	if err.Error() != "storage fault (log): i2c timeout" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
