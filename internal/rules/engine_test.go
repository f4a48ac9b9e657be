package rules_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"eagleeye/internal/domain/anpr"
	"eagleeye/internal/rules"
)

func TestDecide_EmptyTableAllowsValidPlate(t *testing.T) {
	engine := rules.NewEngine(rules.NewTable(nil, nil), zerolog.Nop())

	dec := engine.Decide("MH12AB1234", true, nil)
	if dec.Action != anpr.ActionAllow {
		t.Fatalf("expected ALLOW got %s", dec.Action)
	}
	if dec.RuleName != "normal_entry" {
		t.Fatalf("expected normal_entry got %s", dec.RuleName)
	}
}

func TestDecide_InvalidPlateLogsOnly(t *testing.T) {
	engine := rules.NewEngine(rules.NewTable([]string{"MH12AB1234"}, nil), zerolog.Nop())

	dec := engine.Decide("MH12AB1234", false, nil)
	if dec.Action != anpr.ActionLogOnly {
		t.Fatalf("expected LOG_ONLY got %s", dec.Action)
	}
	if dec.RuleName != "invalid_plate_format" {
		t.Fatalf("expected invalid_plate_format got %s", dec.RuleName)
	}
}

func TestDecide_BlacklistWinsOverAuthorization(t *testing.T) {
	table := rules.NewTable([]string{"MH12AB1234"}, []string{"MH12AB1234"})
	engine := rules.NewEngine(table, zerolog.Nop())

	dec := engine.Decide("MH12AB1234", true, &anpr.VehicleInfo{IsAuthorized: true})
	if dec.Action != anpr.ActionAlert {
		t.Fatalf("expected ALERT got %s", dec.Action)
	}
	if dec.RuleName != "blacklisted_vehicle" {
		t.Fatalf("expected blacklisted_vehicle got %s", dec.RuleName)
	}
}

func TestDecide_BlacklistedViaVehicleInfo(t *testing.T) {
	engine := rules.NewEngine(rules.NewTable(nil, nil), zerolog.Nop())

	dec := engine.Decide("KA05MN6789", true, &anpr.VehicleInfo{IsBlacklisted: true})
	if dec.RuleName != "blacklisted_vehicle" {
		t.Fatalf("expected blacklisted_vehicle got %s", dec.RuleName)
	}
}

func TestDecide_UnauthorizedEntry(t *testing.T) {
	table := rules.NewTable(nil, []string{"MH12AB1234"})
	engine := rules.NewEngine(table, zerolog.Nop())

	dec := engine.Decide("TN09GH3456", true, &anpr.VehicleInfo{IsAuthorized: false, IsBlacklisted: false})
	if dec.Action != anpr.ActionAlert {
		t.Fatalf("expected ALERT got %s", dec.Action)
	}
	if dec.RuleName != "unauthorized_entry" {
		t.Fatalf("expected unauthorized_entry got %s", dec.RuleName)
	}

	// Same plate with no vehicle record at all is still unauthorized.
	dec = engine.Decide("TN09GH3456", true, nil)
	if dec.RuleName != "unauthorized_entry" {
		t.Fatalf("expected unauthorized_entry got %s", dec.RuleName)
	}
}

func TestDecide_AuthorizedViaVehicleInfo(t *testing.T) {
	table := rules.NewTable(nil, []string{"MH12AB1234"})
	engine := rules.NewEngine(table, zerolog.Nop())

	dec := engine.Decide("TN09GH3456", true, &anpr.VehicleInfo{IsAuthorized: true})
	if dec.Action != anpr.ActionAllow {
		t.Fatalf("expected ALLOW got %s", dec.Action)
	}
}

func TestLoad_MissingFileYieldsEmptyTable(t *testing.T) {
	table, err := rules.Load(filepath.Join(t.TempDir(), "absent.json"), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.IsBlacklisted("MH12AB1234") {
		t.Fatal("empty table must not blacklist anything")
	}
	if table.HasAuthorizedList() {
		t.Fatal("empty table must not define an authorization list")
	}
}

func TestLoad_ReadsRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	body := `{"blacklisted_plates": ["MH12AB1234"], "authorized_plates": ["TN09GH3456"]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := rules.Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !table.IsBlacklisted("MH12AB1234") {
		t.Fatal("expected MH12AB1234 blacklisted")
	}
	if !table.IsAuthorized("TN09GH3456") {
		t.Fatal("expected TN09GH3456 authorized")
	}
}
