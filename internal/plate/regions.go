package plate

// Region codes of issuing jurisdictions (Indian state and union territory
// codes). A plate is only valid when its first two letters are listed here.
var regionCodes = map[string]struct{}{
	"AN": {}, "AP": {}, "AR": {}, "AS": {}, "BR": {}, "CG": {}, "CH": {},
	"DD": {}, "DH": {}, "DL": {}, "DN": {}, "GA": {}, "GJ": {}, "HP": {},
	"HR": {}, "JH": {}, "JK": {}, "KA": {}, "KL": {}, "LA": {}, "LD": {},
	"MH": {}, "ML": {}, "MN": {}, "MP": {}, "MZ": {}, "NL": {}, "OR": {},
	"PB": {}, "PY": {}, "RJ": {}, "SK": {}, "TN": {}, "TR": {}, "TS": {},
	"UK": {}, "UP": {}, "WB": {},
}

// IsRegionCode reports whether code is a known issuing-region code.
func IsRegionCode(code string) bool {
	_, ok := regionCodes[code]
	return ok
}
