package risk

// DefaultIndustryMap maps common Shanghai/Shenzhen symbols to their sector.
// Symbols outside the map fall into "other"; a production deployment would
// load this from a reference-data source instead.
func DefaultIndustryMap() map[string]string {
	return map[string]string{
		"600000": "banking",
		"600036": "banking",
		"601166": "banking",
		"601328": "banking",
		"601888": "banking",
		"601988": "banking",
		"000001": "banking",
		"600519": "liquor",
		"000858": "liquor",
		"600887": "food-beverage",
		"002594": "food-beverage",
		"601318": "insurance",
		"601628": "insurance",
		"600276": "pharma",
		"601607": "pharma",
		"002304": "auto",
		"600104": "auto",
		"601800": "construction",
		"601117": "construction",
		"000002": "real-estate",
		"600048": "real-estate",
		"600031": "machinery",
		"601106": "machinery",
		"000651": "electronics",
		"600703": "electronics",
		"600585": "coal",
		"601088": "coal",
		"600028": "petrochemical",
		"601857": "petrochemical",
		"000333": "appliances",
	}
}
