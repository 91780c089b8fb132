package discovery

import (
	"regexp"
	"strings"
)

// Non-US markers are checked before anything else so "London, UK" cannot
// pass on a later rule. Matched on word boundaries: "Indianapolis" must not
// trip over "india".
var nonUSIndicators = []string{
	"uk", "united kingdom", "london", "manchester", "edinburgh",
	"canada", "toronto", "vancouver", "montreal", "ottawa",
	"germany", "berlin", "munich", "hamburg",
	"france", "paris", "lyon",
	"netherlands", "amsterdam", "rotterdam",
	"india", "bangalore", "bengaluru", "mumbai", "delhi", "hyderabad", "pune", "chennai",
	"israel", "tel aviv",
	"australia", "sydney", "melbourne", "brisbane",
	"singapore",
	"japan", "tokyo", "osaka",
	"china", "beijing", "shanghai", "shenzhen",
	"brazil", "sao paulo", "são paulo",
	"mexico city", "guadalajara",
	"spain", "madrid", "barcelona",
	"portugal", "lisbon",
	"italy", "milan", "rome",
	"sweden", "stockholm",
	"norway", "oslo",
	"denmark", "copenhagen",
	"finland", "helsinki",
	"poland", "warsaw", "krakow",
	"ireland", "dublin",
	"switzerland", "zurich", "geneva",
	"austria", "vienna",
	"belgium", "brussels",
	"argentina", "buenos aires",
	"colombia", "bogota",
	"chile", "santiago",
	"nigeria", "lagos",
	"kenya", "nairobi",
	"south africa", "cape town",
	"ukraine", "kyiv",
	"romania", "bucharest",
	"czech", "prague",
	"estonia", "tallinn",
	"latvia", "lithuania", "vilnius",
	"turkey", "istanbul",
	"uae", "dubai",
	"philippines", "manila",
	"indonesia", "jakarta",
	"vietnam", "hanoi",
	"thailand", "bangkok",
	"south korea", "seoul",
	"new zealand", "auckland",
	"europe", "emea", "apac", "latam", "latin america", "south america",
}

// Explicit US markers.
var usIndicators = []string{
	"usa", "u.s.", "u.s.a", "united states",
	"us-based", "us based", "us only", "us remote", "remote (us)", "remote - us", "remote, us",
}

// Large and tech-hub US cities matched by name alone.
var usCities = []string{
	"san francisco", "new york", "nyc", "los angeles", "san jose", "san diego",
	"seattle", "austin", "boston", "chicago", "denver", "atlanta", "miami",
	"dallas", "houston", "phoenix", "philadelphia", "portland", "minneapolis",
	"detroit", "nashville", "charlotte", "raleigh", "durham", "salt lake city",
	"las vegas", "baltimore", "pittsburgh", "cincinnati", "columbus",
	"kansas city", "st. louis", "sacramento", "oakland", "palo alto",
	"mountain view", "menlo park", "sunnyvale", "santa clara", "cupertino",
	"redwood city", "san mateo", "berkeley", "boulder", "ann arbor",
	"cambridge", "brooklyn", "manhattan", "irvine", "pasadena", "bellevue",
	"redmond", "plano", "scottsdale", "tempe", "washington dc", "washington, d.c.",
}

var usStateNames = []string{
	"alabama", "alaska", "arizona", "arkansas", "california", "colorado",
	"connecticut", "delaware", "florida", "georgia", "hawaii", "idaho",
	"illinois", "indiana", "iowa", "kansas", "kentucky", "louisiana", "maine",
	"maryland", "massachusetts", "michigan", "minnesota", "mississippi",
	"missouri", "montana", "nebraska", "nevada", "new hampshire", "new jersey",
	"new mexico", "north carolina", "north dakota", "ohio", "oklahoma",
	"oregon", "pennsylvania", "rhode island", "south carolina", "south dakota",
	"tennessee", "texas", "utah", "vermont", "virginia", "west virginia",
	"wisconsin", "wyoming", "district of columbia",
}

var usStateAbbrevs = map[string]struct{}{
	"AL": {}, "AK": {}, "AZ": {}, "AR": {}, "CA": {}, "CO": {}, "CT": {},
	"DE": {}, "FL": {}, "GA": {}, "HI": {}, "ID": {}, "IL": {}, "IN": {},
	"IA": {}, "KS": {}, "KY": {}, "LA": {}, "ME": {}, "MD": {}, "MA": {},
	"MI": {}, "MN": {}, "MS": {}, "MO": {}, "MT": {}, "NE": {}, "NV": {},
	"NH": {}, "NJ": {}, "NM": {}, "NY": {}, "NC": {}, "ND": {}, "OH": {},
	"OK": {}, "OR": {}, "PA": {}, "RI": {}, "SC": {}, "SD": {}, "TN": {},
	"TX": {}, "UT": {}, "VT": {}, "VA": {}, "WA": {}, "WV": {}, "WI": {},
	"WY": {}, "DC": {},
}

var (
	commaAbbrevPattern = regexp.MustCompile(`,\s*([A-Z]{2})(?:\s|$|\d)`)
	zipPattern         = regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)
)

// looksUS reports whether a freeform location string reads as a U.S.
// location. A bare "remote" is not evidence either way and reports false.
func looksUS(location string) bool {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return false
	}

	for _, term := range nonUSIndicators {
		if containsToken(loc, term) {
			return false
		}
	}
	for _, term := range usIndicators {
		if containsToken(loc, term) {
			return true
		}
	}
	for _, city := range usCities {
		if containsToken(loc, city) {
			return true
		}
	}
	for _, state := range usStateNames {
		if containsToken(loc, state) {
			return true
		}
	}

	// ", CA" style state abbreviations are case-sensitive: "Marina, ca" is
	// too ambiguous, "Marina, CA" is not.
	if m := commaAbbrevPattern.FindStringSubmatch(location); m != nil {
		if _, ok := usStateAbbrevs[m[1]]; ok || m[1] == "US" {
			return true
		}
	}
	return zipPattern.MatchString(location)
}

// looksUSDomain reports whether a domain's TLD pins it to the US.
func looksUSDomain(domain string) bool {
	return strings.HasSuffix(strings.ToLower(domain), ".us")
}

// containsToken reports whether term appears in s on word boundaries. Both
// are expected lowercase; term may contain spaces.
func containsToken(s, term string) bool {
	for idx := 0; ; {
		i := strings.Index(s[idx:], term)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordByte(s[i-1])
		end := i + len(term)
		after := end == len(s) || !isWordByte(s[end])
		if before && after {
			return true
		}
		idx = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
