// Package regions maps U.S. state and territory names, as they appear in the
// JHU Province_State column, to USPS codes.
package regions

// Codes is a name → code table. The zero value knows no regions.
type Codes map[string]string

// Lookup matches name exactly; no case folding or trimming.
func (c Codes) Lookup(name string) (string, bool) {
	code, ok := c[name]
	return code, ok
}

// US covers the 50 states, D.C. and the inhabited territories.
// Cruise-ship cohorts ("Diamond Princess", "Grand Princess") are not
// listed.
var US = Codes{
	"Alabama":                  "AL",
	"Alaska":                   "AK",
	"American Samoa":           "AS",
	"Arizona":                  "AZ",
	"Arkansas":                 "AR",
	"California":               "CA",
	"Colorado":                 "CO",
	"Connecticut":              "CT",
	"Delaware":                 "DE",
	"District of Columbia":     "DC",
	"Florida":                  "FL",
	"Georgia":                  "GA",
	"Guam":                     "GU",
	"Hawaii":                   "HI",
	"Idaho":                    "ID",
	"Illinois":                 "IL",
	"Indiana":                  "IN",
	"Iowa":                     "IA",
	"Kansas":                   "KS",
	"Kentucky":                 "KY",
	"Louisiana":                "LA",
	"Maine":                    "ME",
	"Maryland":                 "MD",
	"Massachusetts":            "MA",
	"Michigan":                 "MI",
	"Minnesota":                "MN",
	"Mississippi":              "MS",
	"Missouri":                 "MO",
	"Montana":                  "MT",
	"Nebraska":                 "NE",
	"Nevada":                   "NV",
	"New Hampshire":            "NH",
	"New Jersey":               "NJ",
	"New Mexico":               "NM",
	"New York":                 "NY",
	"North Carolina":           "NC",
	"North Dakota":             "ND",
	"Northern Mariana Islands": "MP",
	"Ohio":                     "OH",
	"Oklahoma":                 "OK",
	"Oregon":                   "OR",
	"Pennsylvania":             "PA",
	"Puerto Rico":              "PR",
	"Rhode Island":             "RI",
	"South Carolina":           "SC",
	"South Dakota":             "SD",
	"Tennessee":                "TN",
	"Texas":                    "TX",
	"Utah":                     "UT",
	"Vermont":                  "VT",
	"Virgin Islands":           "VI",
	"Virginia":                 "VA",
	"Washington":               "WA",
	"West Virginia":            "WV",
	"Wisconsin":                "WI",
	"Wyoming":                  "WY",
}
