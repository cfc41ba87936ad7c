package tracking

import (
	"regexp"

	"github.com/99minutos/parcel-intake/internal/core/domain"
)

// rule is one carrier format. Rules are tried in slice order and the first
// match wins, so the list runs from the most structurally distinctive format
// to the most generic.
type rule struct {
	name    string
	carrier domain.Carrier
	shape   *regexp.Regexp
	// length is the fixed normalized length, or 0 for variable-length forms.
	// Only fixed-length rules take part in windowing.
	length int
	// checksum is nil when the format defines no check digit.
	checksum func(string) bool
	// distinctive rules are identified by their prefix alone, so a
	// concatenated run may be windowed without every piece validating.
	distinctive bool
}

// match reports whether s has the rule's shape and, if so, the confidence
// the checksum outcome earns it.
func (r *rule) match(s string) (domain.Confidence, bool) {
	if r.length > 0 && len(s) != r.length {
		return "", false
	}
	if !r.shape.MatchString(s) {
		return "", false
	}
	if r.checksum != nil && r.checksum(s) {
		return domain.ConfidenceHigh, true
	}
	return domain.ConfidenceMedium, true
}

var (
	ruleSSCC = &rule{
		name:     "gs1-sscc-18",
		carrier:  domain.CarrierGS1SSCC,
		shape:    regexp.MustCompile(`^[0-9]{18}$`),
		length:   18,
		checksum: gs1Mod10,
	}
	ruleUPS = &rule{
		name:        "ups-1z",
		carrier:     domain.CarrierUPS,
		shape:       regexp.MustCompile(`^1Z[0-9A-Z]{16}$`),
		length:      18,
		checksum:    upsMod10,
		distinctive: true,
	}
	ruleFedExExpress = &rule{
		name:     "fedex-express-12",
		carrier:  domain.CarrierFedEx,
		shape:    regexp.MustCompile(`^[0-9]{12}$`),
		length:   12,
		checksum: fedexMod11,
	}
	ruleFedExGround96 = &rule{
		name:     "fedex-ground-15",
		carrier:  domain.CarrierFedEx,
		shape:    regexp.MustCompile(`^[0-9]{15}$`),
		length:   15,
		checksum: gs1Mod10,
	}
	ruleFedExGround20 = &rule{
		name:     "fedex-ground-20",
		carrier:  domain.CarrierFedEx,
		shape:    regexp.MustCompile(`^[0-9]{20}$`),
		length:   20,
		checksum: gs1Mod10,
	}
	ruleUSPSIMpb = &rule{
		name:     "usps-impb-22",
		carrier:  domain.CarrierUSPS,
		shape:    regexp.MustCompile(`^9[1-5][0-9]{20}$`),
		length:   22,
		checksum: gs1Mod10,
	}
	ruleUSPSS10 = &rule{
		name:        "usps-s10",
		carrier:     domain.CarrierUSPS,
		shape:       regexp.MustCompile(`^[A-Z]{2}[0-9]{9}[A-Z]{2}$`),
		length:      13,
		checksum:    s10Mod11,
		distinctive: true,
	}
	ruleDHLExpress = &rule{
		name:     "dhl-express-10",
		carrier:  domain.CarrierDHL,
		shape:    regexp.MustCompile(`^[0-9]{10}$`),
		length:   10,
		checksum: dhlMod7,
	}
	ruleDHLECommerce = &rule{
		name:    "dhl-ecommerce-11",
		carrier: domain.CarrierDHL,
		shape:   regexp.MustCompile(`^[0-9]{11}$`),
		length:  11,
	}
	ruleDHLGlobalMail = &rule{
		name:        "dhl-ecommerce-gm",
		carrier:     domain.CarrierDHL,
		shape:       regexp.MustCompile(`^GM[0-9]{16,20}$`),
		distinctive: true,
	}
	ruleDHLPiece = &rule{
		name:        "dhl-piece-jd",
		carrier:     domain.CarrierDHL,
		shape:       regexp.MustCompile(`^JJ?D[0-9]{18}$`),
		distinctive: true,
	}
	ruleAmazon = &rule{
		name:        "amazon-tba",
		carrier:     domain.CarrierAmazonLogistics,
		shape:       regexp.MustCompile(`^TBA[0-9]{12}$`),
		length:      15,
		distinctive: true,
	}
)

// rules is the fixed priority order.
var rules = []*rule{
	ruleSSCC,
	ruleUPS,
	ruleFedExExpress,
	ruleFedExGround96,
	ruleFedExGround20,
	ruleUSPSIMpb,
	ruleUSPSS10,
	ruleDHLExpress,
	ruleDHLECommerce,
	ruleDHLGlobalMail,
	ruleDHLPiece,
	ruleAmazon,
}

// embeddedForm locates a tracking number inside a longer numeric barcode
// payload. The number is the trailing tail digits and is classified by rule.
type embeddedForm struct {
	name  string
	shape *regexp.Regexp
	tail  int
	rule  *rule
}

var embeddedForms = []embeddedForm{
	{
		// 420 + ZIP or ZIP+4 routing prefix in front of an IMpb number.
		name:  "usps-420-routing",
		shape: regexp.MustCompile(`^420([0-9]{5}|[0-9]{9})9[1-5][0-9]{20}$`),
		tail:  22,
		rule:  ruleUSPSIMpb,
	},
	{
		// FedEx 1D label barcodes carry service and routing data in front of
		// the 20-digit ground number.
		name:  "fedex-long-barcode",
		shape: regexp.MustCompile(`^[0-9]{22,34}$`),
		tail:  20,
		rule:  ruleFedExGround20,
	},
}

// matchRules classifies s against the priority list.
func matchRules(s string) (*rule, domain.Confidence, bool) {
	for _, r := range rules {
		if conf, ok := r.match(s); ok {
			return r, conf, true
		}
	}
	return nil, "", false
}
