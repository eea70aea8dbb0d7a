package appstore

import "strings"

// storeFronts maps ISO country codes to the numeric store front prefix the
// login endpoint hands back (the suffix after "-" is a language/variant code
// and does not matter for the catalog country).
var storeFronts = map[string]string{
	"AE": "143481",
	"AR": "143505",
	"AT": "143445",
	"AU": "143460",
	"BE": "143446",
	"BR": "143503",
	"CA": "143455",
	"CH": "143459",
	"CL": "143483",
	"CN": "143465",
	"CO": "143501",
	"CZ": "143489",
	"DE": "143443",
	"DK": "143458",
	"EG": "143516",
	"ES": "143454",
	"FI": "143447",
	"FR": "143442",
	"GB": "143444",
	"GR": "143448",
	"HK": "143463",
	"HU": "143482",
	"ID": "143476",
	"IE": "143449",
	"IL": "143491",
	"IN": "143467",
	"IT": "143450",
	"JP": "143462",
	"KR": "143466",
	"LU": "143451",
	"MX": "143468",
	"MY": "143473",
	"NG": "143561",
	"NL": "143452",
	"NO": "143457",
	"NZ": "143461",
	"PE": "143507",
	"PH": "143474",
	"PK": "143477",
	"PL": "143478",
	"PT": "143453",
	"RO": "143487",
	"RU": "143469",
	"SA": "143479",
	"SE": "143456",
	"SG": "143464",
	"TH": "143475",
	"TR": "143480",
	"TW": "143470",
	"UA": "143492",
	"US": "143441",
	"VN": "143471",
	"ZA": "143472",
}

// CountryCodeFromStoreFront resolves a store front like "143441-19,32" to its
// catalog country code.
func CountryCodeFromStoreFront(storeFront string) (string, error) {
	prefix, _, _ := strings.Cut(storeFront, "-")
	for code, value := range storeFronts {
		if value == prefix {
			return code, nil
		}
	}
	return "", newErrorf(ErrUnknownStoreFront, storeFront, "unknown store front: "+storeFront)
}
