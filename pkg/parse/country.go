package parse

import (
	"regexp"
	"sort"
	"strings"
)

// Release-style country codes and the names they resolve to. Two-letter
// codes overlap with language codes, so bare codes only count when
// bracketed. This is the slice of ISO-3166 that actually shows up in
// periodical release names, not the full registry; unlisted countries
// simply parse with no country.
var countryCodes = map[string]string{
	"UK":  "United Kingdom",
	"GB":  "United Kingdom",
	"US":  "United States",
	"USA": "United States",
	"AU":  "Australia",
	"CA":  "Canada",
	"NZ":  "New Zealand",
	"IE":  "Ireland",
	"ZA":  "South Africa",
	"IN":  "India",
	"DE":  "Germany",
	"FR":  "France",
	"ES":  "Spain",
	"IT":  "Italy",
	"PT":  "Portugal",
	"NL":  "Netherlands",
	"BE":  "Belgium",
	"AT":  "Austria",
	"CH":  "Switzerland",
	"PL":  "Poland",
	"CZ":  "Czechia",
	"SK":  "Slovakia",
	"HU":  "Hungary",
	"RO":  "Romania",
	"BG":  "Bulgaria",
	"GR":  "Greece",
	"TR":  "Turkey",
	"UA":  "Ukraine",
	"HR":  "Croatia",
	"RS":  "Serbia",
	"SI":  "Slovenia",
	"LT":  "Lithuania",
	"LV":  "Latvia",
	"EE":  "Estonia",
	"IS":  "Iceland",
	"RU":  "Russia",
	"JP":  "Japan",
	"CN":  "China",
	"TW":  "Taiwan",
	"HK":  "Hong Kong",
	"KR":  "South Korea",
	"SG":  "Singapore",
	"MY":  "Malaysia",
	"TH":  "Thailand",
	"ID":  "Indonesia",
	"PH":  "Philippines",
	"VN":  "Vietnam",
	"IL":  "Israel",
	"AE":  "United Arab Emirates",
	"SA":  "Saudi Arabia",
	"EG":  "Egypt",
	"NG":  "Nigeria",
	"BR":  "Brazil",
	"AR":  "Argentina",
	"CL":  "Chile",
	"CO":  "Colombia",
	"PE":  "Peru",
	"MX":  "Mexico",
	"SE":  "Sweden",
	"NO":  "Norway",
	"DK":  "Denmark",
	"FI":  "Finland",
}

var countryNameRE = func() *regexp.Regexp {
	seen := map[string]bool{}
	names := []string{}
	for _, name := range countryCodes {
		lower := strings.ToLower(name)
		if !seen[lower] {
			seen[lower] = true
			names = append(names, regexp.QuoteMeta(lower))
		}
	}
	sort.Strings(names)
	return regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)\b`)
}()

var countryByLowerName = func() map[string]string {
	byName := map[string]string{}
	for _, name := range countryCodes {
		byName[strings.ToLower(name)] = name
	}
	return byName
}()

var bracketedCodeRE = regexp.MustCompile(`[\[(]([A-Z]{2,3})[\])]`)

// DetectCountry finds the edition country signalled by a filename or path
// segment. Bracketed codes like "[UK]" are preferred; otherwise a full
// country name on a word boundary counts. Returns "" when nothing
// matches.
func DetectCountry(s string) string {
	for _, m := range bracketedCodeRE.FindAllStringSubmatch(s, -1) {
		if country, ok := countryCodes[m[1]]; ok {
			return country
		}
	}
	if m := countryNameRE.FindString(s); m != "" {
		return countryByLowerName[strings.ToLower(m)]
	}
	return ""
}
