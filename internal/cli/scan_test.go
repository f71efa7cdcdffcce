package cli

import (
	"testing"

	"retest-scanner/internal/config"
)

func testApp() *App {
	return &App{
		Config: &config.Config{
			Scan: config.ScanConfig{
				Tolerance:       0.001,
				MaxRetestWindow: 20,
				TakeoffWindow:   20,
				TakeoffPct:      0.005,
				ATREnabled:      true,
				ATRMult:         1.0,
				ATRPeriod:       14,
			},
		},
	}
}

func TestParamsFromFlagsDefaultsToConfig(t *testing.T) {
	app := testApp()
	cmd := newScanCmd(app)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	params, err := paramsFromFlags(cmd, app)
	if err != nil {
		t.Fatalf("paramsFromFlags() error = %v", err)
	}
	if params.Tolerance != 0.001 || params.MaxRetestWindow != 20 ||
		params.TakeoffWindow != 20 || params.TakeoffPct != 0.005 ||
		!params.ATREnabled || params.ATRMult != 1.0 {
		t.Errorf("params = %+v, want config defaults", params)
	}
}

func TestParamsFromFlagsExplicitZeroOverrides(t *testing.T) {
	app := testApp()
	cmd := newScanCmd(app)
	if err := cmd.ParseFlags([]string{"--takeoff-pct", "0", "--atr-mult", "0"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	params, err := paramsFromFlags(cmd, app)
	if err != nil {
		t.Fatalf("paramsFromFlags() error = %v", err)
	}
	if params.TakeoffPct != 0 {
		t.Errorf("TakeoffPct = %v, explicit zero flag must override config", params.TakeoffPct)
	}
	if params.ATRMult != 0 {
		t.Errorf("ATRMult = %v, explicit zero flag must override config", params.ATRMult)
	}
}

func TestParamsFromFlagsPartialOverride(t *testing.T) {
	app := testApp()
	cmd := newScanCmd(app)
	if err := cmd.ParseFlags([]string{"--tolerance", "0.002", "--no-atr"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	params, err := paramsFromFlags(cmd, app)
	if err != nil {
		t.Fatalf("paramsFromFlags() error = %v", err)
	}
	if params.Tolerance != 0.002 {
		t.Errorf("Tolerance = %v, want 0.002", params.Tolerance)
	}
	if params.ATREnabled {
		t.Error("ATREnabled = true, want --no-atr to disable it")
	}
	if params.MaxRetestWindow != 20 || params.TakeoffPct != 0.005 {
		t.Errorf("untouched fields changed: %+v", params)
	}
}
