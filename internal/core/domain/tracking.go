package domain

// Carrier identifies the carrier format a tracking number was classified as.
type Carrier string

const (
	CarrierUPS             Carrier = "UPS"
	CarrierFedEx           Carrier = "FEDEX"
	CarrierUSPS            Carrier = "USPS"
	CarrierDHL             Carrier = "DHL"
	CarrierAmazonLogistics Carrier = "AMAZON_LOGISTICS"
	CarrierGS1SSCC         Carrier = "GS1_SSCC"
	CarrierUnknown         Carrier = "UNKNOWN"
)

// Confidence grades a classification. It is derived from the checksum outcome:
// HIGH only when the matched format defines a check digit and it validates.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
)

// ParsedTrackingNumber is one candidate found in scanned or pasted text.
type ParsedTrackingNumber struct {
	TrackingNumber string     `json:"tracking_number" bson:"tracking_number"`
	Carrier        Carrier    `json:"carrier" bson:"carrier"`
	Confidence     Confidence `json:"confidence" bson:"confidence"`
	Raw            string     `json:"raw" bson:"raw"`
}

// NeedsReview reports whether an operator should confirm the format by hand.
func (p ParsedTrackingNumber) NeedsReview() bool {
	return p.Confidence != ConfidenceHigh
}
