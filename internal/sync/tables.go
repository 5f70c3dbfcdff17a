package sync

// Static lookup tables used by the rule-based strategy tier and by the
// sam.gov normalizer. Plain immutable maps, keyed by the lowercased form
// of the profile field.

// industryKeywords maps a profile's industry to search keywords.
var industryKeywords = map[string][]string{
	"agriculture":   {"agriculture development", "rural farming"},
	"construction":  {"infrastructure construction", "building modernization"},
	"education":     {"education program", "workforce training"},
	"energy":        {"clean energy", "energy efficiency"},
	"healthcare":    {"health services", "community health"},
	"manufacturing": {"advanced manufacturing", "supply chain"},
	"technology":    {"technology innovation", "digital services"},
	"transportation": {"transportation infrastructure", "transit"},
}

// organizationTypeKeywords maps an organization type to keywords that work
// across providers regardless of industry.
var organizationTypeKeywords = map[string][]string{
	"nonprofit":      {"nonprofit capacity building", "community services"},
	"small-business": {"small business innovation", "small business development"},
	"university":     {"academic research", "higher education"},
	"municipality":   {"local government", "community development"},
	"tribal":         {"tribal government", "native communities"},
}

// certificationKeywords maps business certifications to targeted keywords.
var certificationKeywords = map[string][]string{
	"8a":      {"disadvantaged business"},
	"dbe":     {"disadvantaged business enterprise"},
	"hubzone": {"hubzone"},
	"mbe":     {"minority owned business"},
	"sdvosb":  {"veteran owned business"},
	"wosb":    {"women owned business"},
}

// projectTypeKeywords maps the kind of project to support-type keywords.
var projectTypeKeywords = map[string][]string{
	"equipment":      {"equipment acquisition"},
	"expansion":      {"business expansion"},
	"infrastructure": {"infrastructure improvement"},
	"research":       {"research and development"},
	"training":       {"workforce development"},
}

// defaultKeywords are the organization-agnostic fallbacks used when a
// profile yields no categories at all.
var defaultKeywords = []string{
	"small business grant",
	"community development",
	"economic development",
	"rural development",
	"innovation grant",
}

// setAsideFlags translates sam.gov set-aside codes into eligibility flags
// on the canonical record.
type setAsideProfile struct {
	Description   string
	Minority      bool
	WomanOwned    bool
	Veteran       bool
	SmallBusiness bool
}

var setAsideFlags = map[string]setAsideProfile{
	"SBA":     {Description: "Total Small Business Set-Aside", SmallBusiness: true},
	"SBP":     {Description: "Partial Small Business Set-Aside", SmallBusiness: true},
	"8A":      {Description: "8(a) Set-Aside", Minority: true, SmallBusiness: true},
	"8AN":     {Description: "8(a) Sole Source", Minority: true, SmallBusiness: true},
	"HZC":     {Description: "HUBZone Set-Aside", SmallBusiness: true},
	"HZS":     {Description: "HUBZone Sole Source", SmallBusiness: true},
	"SDVOSBC": {Description: "Service-Disabled Veteran-Owned Set-Aside", Veteran: true, SmallBusiness: true},
	"SDVOSBS": {Description: "Service-Disabled Veteran-Owned Sole Source", Veteran: true, SmallBusiness: true},
	"WOSB":    {Description: "Women-Owned Small Business Set-Aside", WomanOwned: true, SmallBusiness: true},
	"WOSBSS":  {Description: "Women-Owned Small Business Sole Source", WomanOwned: true, SmallBusiness: true},
	"EDWOSB":  {Description: "Economically Disadvantaged WOSB Set-Aside", WomanOwned: true, SmallBusiness: true},
	"EDWOSBSS": {Description: "Economically Disadvantaged WOSB Sole Source", WomanOwned: true, SmallBusiness: true},
	"VSA":     {Description: "Veteran-Owned Set-Aside", Veteran: true, SmallBusiness: true},
}

// agencyNames expands the agency codes providers abbreviate.
var agencyNames = map[string]string{
	"DHS":  "Department of Homeland Security",
	"DOC":  "Department of Commerce",
	"DOD":  "Department of Defense",
	"DOE":  "Department of Energy",
	"DOI":  "Department of the Interior",
	"DOL":  "Department of Labor",
	"DOT":  "Department of Transportation",
	"ED":   "Department of Education",
	"EPA":  "Environmental Protection Agency",
	"GSA":  "General Services Administration",
	"HHS":  "Department of Health and Human Services",
	"HUD":  "Department of Housing and Urban Development",
	"NASA": "National Aeronautics and Space Administration",
	"NIH":  "National Institutes of Health",
	"NSF":  "National Science Foundation",
	"SBA":  "Small Business Administration",
	"USDA": "Department of Agriculture",
	"VA":   "Department of Veterans Affairs",
}

// expandAgency resolves a code to its full name, falling back to the code.
func expandAgency(code string) string {
	if name, ok := agencyNames[code]; ok {
		return name
	}
	return code
}
