package rules

import (
	"fmt"

	"github.com/rs/zerolog"

	"eagleeye/internal/domain/anpr"
)

// Engine turns a recognized plate and its validation status into an access
// decision. Stateless apart from the read-only table, so one engine serves
// concurrent frames.
type Engine struct {
	table *Table
	log   zerolog.Logger
}

func NewEngine(table *Table, log zerolog.Logger) *Engine {
	if table == nil {
		table = NewTable(nil, nil)
	}
	return &Engine{table: table, log: log}
}

// Decide applies the ordered rules, first match wins:
//
//  1. invalid format           -> LOG_ONLY invalid_plate_format
//  2. blacklisted              -> ALERT blacklisted_vehicle
//  3. authorization list miss  -> ALERT unauthorized_entry
//  4. otherwise                -> ALLOW normal_entry
//
// vehicleInfo may be nil when the plate has no registered vehicle.
func (e *Engine) Decide(plateText string, isValid bool, vehicleInfo *anpr.VehicleInfo) anpr.Decision {
	if !isValid {
		return anpr.Decision{
			Action:      anpr.ActionLogOnly,
			RuleName:    "invalid_plate_format",
			Description: "Invalid plate format detected",
		}
	}

	if e.table.IsBlacklisted(plateText) || (vehicleInfo != nil && vehicleInfo.IsBlacklisted) {
		e.log.Warn().Str("plate", plateText).Msg("blacklisted vehicle detected")
		return anpr.Decision{
			Action:      anpr.ActionAlert,
			RuleName:    "blacklisted_vehicle",
			Description: fmt.Sprintf("Blacklisted vehicle detected: %s", plateText),
		}
	}

	if e.table.HasAuthorizedList() {
		if !e.table.IsAuthorized(plateText) && (vehicleInfo == nil || !vehicleInfo.IsAuthorized) {
			e.log.Warn().Str("plate", plateText).Msg("unauthorized vehicle detected")
			return anpr.Decision{
				Action:      anpr.ActionAlert,
				RuleName:    "unauthorized_entry",
				Description: fmt.Sprintf("Unauthorized vehicle detected: %s", plateText),
			}
		}
	}

	return anpr.Decision{
		Action:      anpr.ActionAllow,
		RuleName:    "normal_entry",
		Description: fmt.Sprintf("Vehicle allowed: %s", plateText),
	}
}
