package records

import (
	"fmt"
	"strings"
)

// RecordType selects the table a record id refers to.
type RecordType string

const (
	RecordTypeTraveler  RecordType = "traveler"
	RecordTypeDependent RecordType = "dependent"
)

// ParseRecordType validates a record type, defaulting to traveler when empty.
func ParseRecordType(s string) (RecordType, error) {
	switch RecordType(strings.ToLower(strings.TrimSpace(s))) {
	case "", RecordTypeTraveler:
		return RecordTypeTraveler, nil
	case RecordTypeDependent:
		return RecordTypeDependent, nil
	default:
		return "", fmt.Errorf("recordType must be %q or %q, got %q", RecordTypeTraveler, RecordTypeDependent, s)
	}
}

// Table returns the table holding records of this type.
func (rt RecordType) Table() string {
	if rt == RecordTypeDependent {
		return "dependents"
	}
	return "travelers"
}

// Discriminator names a context attribute conditional mapping groups branch on.
type Discriminator string

const (
	DiscOccupationStatus  Discriminator = "occupation_status"
	DiscSponsorType       Discriminator = "travel_covered_by"
	DiscVisaCategory      Discriminator = "visa_type"
	DiscStayBooking       Discriminator = "has_stay_booking"
	DiscFingerprintsTaken Discriminator = "fingerprints_taken"
	DiscHasCreditCard     Discriminator = "has_credit_card"
	DiscHasBookings       Discriminator = "has_bookings"
)

// OccupationStatus is the normalised occupation answer.
type OccupationStatus string

const (
	OccupationUnknown      OccupationStatus = ""
	OccupationEmployee     OccupationStatus = "employee"
	OccupationSelfEmployed OccupationStatus = "self_employed"
	OccupationStudent      OccupationStatus = "student"
	OccupationRetired      OccupationStatus = "retired"
	OccupationUnemployed   OccupationStatus = "unemployed"
)

var occupationLabels = map[string]OccupationStatus{
	"employee":                                    OccupationEmployee,
	"self-employed / freelancer":                  OccupationSelfEmployed,
	"student":                                     OccupationStudent,
	"retired":                                     OccupationRetired,
	"unemployed / homemaker / volunteer / intern": OccupationUnemployed,
}

// ParseOccupationStatus maps a questionnaire label onto its status.
func ParseOccupationStatus(label string) OccupationStatus {
	return occupationLabels[strings.ToLower(strings.TrimSpace(label))]
}

// SponsorType is who covers the trip's costs.
type SponsorType string

const (
	SponsorUnknown SponsorType = ""
	SponsorSelf    SponsorType = "self"
	SponsorFamily  SponsorType = "family"
	SponsorHost    SponsorType = "host"
)

var sponsorLabels = map[string]SponsorType{
	"myself": SponsorSelf,
	"self":   SponsorSelf,
	"family member / family member in the eu": SponsorFamily,
	"host / company / organisation":           SponsorHost,
}

// ParseSponsorType maps a travel_covered_by label onto its sponsor type.
func ParseSponsorType(label string) SponsorType {
	return sponsorLabels[strings.ToLower(strings.TrimSpace(label))]
}

// VisaCategory is the normalised purpose of the visit.
type VisaCategory string

const (
	VisaUnknown       VisaCategory = ""
	VisaTourist       VisaCategory = "tourist"
	VisaFamilyFriends VisaCategory = "family_friends"
	VisaBusiness      VisaCategory = "business"
	VisaOther         VisaCategory = "other"
)

// ParseVisaCategory classifies a free-text visa type. Substring matching is
// confined to this function; everything downstream compares enum values.
func ParseVisaCategory(visaType string) VisaCategory {
	v := strings.ToLower(strings.TrimSpace(visaType))
	switch {
	case v == "":
		return VisaUnknown
	case strings.Contains(v, "tourist"):
		return VisaTourist
	case strings.Contains(v, "family"), strings.Contains(v, "friend"):
		return VisaFamilyFriends
	case strings.Contains(v, "business"):
		return VisaBusiness
	default:
		return VisaOther
	}
}

// YesNo is a normalised questionnaire yes/no answer.
type YesNo string

const (
	AnswerUnknown YesNo = ""
	AnswerYes     YesNo = "yes"
	AnswerNo      YesNo = "no"
)

// ParseYesNo maps Yes/No answers; anything else is unknown.
func ParseYesNo(s string) YesNo {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return AnswerYes
	case "no":
		return AnswerNo
	default:
		return AnswerUnknown
	}
}

// Discriminators are the normalised branch selectors of a context.
type Discriminators struct {
	Occupation        OccupationStatus
	Sponsor           SponsorType
	Visa              VisaCategory
	StayBooking       YesNo
	FingerprintsTaken YesNo
	HasCreditCard     YesNo
	HasBookings       YesNo
}

// Value returns the normalised value of d, or "" when absent or unrecognised.
func (ds Discriminators) Value(d Discriminator) string {
	switch d {
	case DiscOccupationStatus:
		return string(ds.Occupation)
	case DiscSponsorType:
		return string(ds.Sponsor)
	case DiscVisaCategory:
		return string(ds.Visa)
	case DiscStayBooking:
		return string(ds.StayBooking)
	case DiscFingerprintsTaken:
		return string(ds.FingerprintsTaken)
	case DiscHasCreditCard:
		return string(ds.HasCreditCard)
	case DiscHasBookings:
		return string(ds.HasBookings)
	default:
		return ""
	}
}

// KnownValues lists the values a discriminator can take, or nil if the
// discriminator is not recognised.
func KnownValues(d Discriminator) []string {
	switch d {
	case DiscOccupationStatus:
		return []string{string(OccupationEmployee), string(OccupationSelfEmployed), string(OccupationStudent), string(OccupationRetired), string(OccupationUnemployed)}
	case DiscSponsorType:
		return []string{string(SponsorSelf), string(SponsorFamily), string(SponsorHost)}
	case DiscVisaCategory:
		return []string{string(VisaTourist), string(VisaFamilyFriends), string(VisaBusiness), string(VisaOther)}
	case DiscStayBooking, DiscFingerprintsTaken, DiscHasCreditCard, DiscHasBookings:
		return []string{string(AnswerYes), string(AnswerNo)}
	default:
		return nil
	}
}

// IsKnown reports whether value is one of d's normalised values.
func IsKnown(d Discriminator, value string) bool {
	for _, v := range KnownValues(d) {
		if v == value {
			return true
		}
	}
	return false
}
