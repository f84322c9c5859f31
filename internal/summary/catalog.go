package summary

import (
	"github.com/a3tai/visa-pdf-filler/internal/records"
)

// Question categories in display order.
const (
	CategoryPersonalProfile = "Personal Profile"
	CategoryFinancial       = "Financial & Sponsorship"
	CategoryOccupation      = "Employment / Occupation"
	CategoryTravelPlans     = "Travel Plans"
	CategoryAccommodation   = "Accommodation"
	CategoryImmigration     = "Immigration Status"
	CategoryTravelHistory   = "Travel History"
	CategoryBookings        = "Bookings"
	CategoryClientDocuments = "Client Documents"
)

var categoryOrder = []string{
	CategoryPersonalProfile,
	CategoryFinancial,
	CategoryOccupation,
	CategoryTravelPlans,
	CategoryAccommodation,
	CategoryImmigration,
	CategoryTravelHistory,
	CategoryBookings,
	CategoryClientDocuments,
}

// entry is one displayed attribute.
type entry struct {
	id        string
	label     string
	mandatory bool
	file      bool
}

// question is one questionnaire step. Steps with a condition are shown only
// when it holds; fields of a personal step come from the applicant record.
type question struct {
	category string
	personal bool
	when     func(records.Context) bool
	fields   func(records.Context) []entry
}

var identityFields = []entry{
	{id: "first_name", label: "First Name"},
	{id: "last_name", label: "Last Name"},
	{id: "dob", label: "Date of Birth"},
	{id: "nationality", label: "Nationality"},
	{id: "passport_no", label: "Passport No."},
	{id: "passport_issue", label: "Passport Issue"},
	{id: "passport_expire", label: "Passport Expire"},
}

var personalFields = []entry{
	{id: "contact_number", label: "Contact Number", mandatory: true},
	{id: "email", label: "Email", mandatory: true},
	{id: "address_line_1", label: "Address Line 1", mandatory: true},
	{id: "address_line_2", label: "Address Line 2"},
	{id: "city", label: "City", mandatory: true},
	{id: "state_province", label: "State Province", mandatory: true},
	{id: "zip_code", label: "Postal Code", mandatory: true},
	{id: "country", label: "Country"},
}

func fixed(entries ...entry) func(records.Context) []entry {
	return func(records.Context) []entry { return entries }
}

func occupationIs(status records.OccupationStatus) func(records.Context) bool {
	return func(rc records.Context) bool { return rc.Discriminators().Occupation == status }
}

func companyFields(name, phone string) []entry {
	return []entry{
		{id: "company_name", label: name, mandatory: true},
		{id: "company_address_1", label: "Address Line 1", mandatory: true},
		{id: "company_address_2", label: "Address Line 2"},
		{id: "company_city", label: "City", mandatory: true},
		{id: "company_state", label: "State/Province", mandatory: true},
		{id: "company_zip", label: "Postal Code", mandatory: true},
		{id: "company_phone", label: phone},
	}
}

var questions = []question{
	{
		category: CategoryClientDocuments,
		fields: fixed(
			entry{id: "evisa_issue_date", label: "eVisa Issue Date"},
			entry{id: "evisa_expiry_date", label: "eVisa Expiry Date"},
			entry{id: "evisa_no_date_settled", label: "No date found - This is showing settled status"},
			entry{id: "evisa_document_path", label: "Upload eVisa (Screenshot or PDF)", file: true},
		),
	},
	{
		category: CategoryClientDocuments,
		fields: fixed(
			entry{id: "share_code", label: "Enter Share Code"},
			entry{id: "share_code_expiry_date", label: "Share Code Expiry Date"},
			entry{id: "share_code_document_path", label: "Upload Share Code Document (PDF format)", file: true},
		),
	},
	{
		category: CategoryPersonalProfile,
		fields:   fixed(entry{id: "marital_status", label: "What is your marital status?", mandatory: true}),
	},
	{
		category: CategoryPersonalProfile,
		personal: true,
		fields: fixed(
			entry{id: "place_of_birth", label: "Place of Birth", mandatory: true},
			entry{id: "country_of_birth", label: "Country of Birth", mandatory: true},
		),
	},
	{
		category: CategoryFinancial,
		fields:   sponsorFields,
	},
	{
		category: CategoryOccupation,
		fields:   fixed(entry{id: "occupation_status", label: "What is your current occupation?", mandatory: true}),
	},
	{
		category: CategoryOccupation,
		when:     occupationIs(records.OccupationEmployee),
		fields: fixed(append([]entry{{id: "occupation_title", label: "Job Title", mandatory: true}},
			append(companyFields("Company Name", "Company Phone"),
				entry{id: "company_email", label: "Company Email", mandatory: true})...)...),
	},
	{
		category: CategoryOccupation,
		when:     occupationIs(records.OccupationSelfEmployed),
		fields:   fixed(companyFields("Business Name", "Business Phone / Email")...),
	},
	{
		category: CategoryOccupation,
		when:     occupationIs(records.OccupationStudent),
		fields:   fixed(companyFields("School / University Name", "School Contact Information")...),
	},
	{
		category: CategoryOccupation,
		when:     occupationIs(records.OccupationRetired),
		fields:   fixed(entry{id: "occupation_title", label: "Please confirm your retired status.", mandatory: true}),
	},
	{
		category: CategoryOccupation,
		when:     occupationIs(records.OccupationUnemployed),
		fields:   fixed(entry{id: "occupation_title", label: "Please confirm your current status.", mandatory: true}),
	},
	{
		category: CategoryFinancial,
		fields:   fixed(entry{id: "has_credit_card", label: "Do you have a credit card?", mandatory: true}),
	},
	{
		category: CategoryTravelHistory,
		fields:   fixed(entry{id: "fingerprints_taken", label: "Have you had your fingerprints collected for a previous Schengen visa?", mandatory: true}),
	},
	{
		category: CategoryClientDocuments,
		when:     func(rc records.Context) bool { return rc.Discriminators().FingerprintsTaken == records.AnswerYes },
		fields:   fixed(entry{id: "schengen_visa_image", label: "Please upload a clear picture of that visa.", mandatory: true, file: true}),
	},
	{
		category: CategoryTravelPlans,
		fields: fixed(
			entry{id: "travel_date_from", label: "Planned Departure:"},
			entry{id: "travel_date_to", label: "Planned Return:"},
		),
	},
	{
		category: CategoryTravelPlans,
		fields:   fixed(entry{id: "primary_destination", label: "What will be your primary destination city?", mandatory: true}),
	},
	{
		category: CategoryAccommodation,
		when:     func(rc records.Context) bool { return rc.Discriminators().Visa == records.VisaTourist },
		fields:   fixed(entry{id: "has_stay_booking", label: "Have you booked any stay based on the purpose of your visit?", mandatory: true}),
	},
	{
		category: CategoryAccommodation,
		when:     needsAccommodation,
		fields:   accommodationFields,
	},
	{
		category: CategoryBookings,
		fields:   fixed(entry{id: "has_bookings", label: "Have you booked any of the following? (Flight, Train, etc.)", mandatory: true}),
	},
	{
		category: CategoryClientDocuments,
		when:     func(rc records.Context) bool { return rc.Discriminators().HasBookings == records.AnswerYes },
		fields:   fixed(entry{id: "booking_documents_path", label: "Please upload your booking document(s).", mandatory: true, file: true}),
	},
}

func sponsorFields(rc records.Context) []entry {
	out := []entry{{id: "travel_covered_by", label: "Who will cover the costs of your trip?", mandatory: true}}
	switch rc.Discriminators().Sponsor {
	case records.SponsorFamily:
		out = append(out,
			entry{id: "sponsor_relation", label: "Relation"},
			entry{id: "sponsor_full_name", label: "Full Name"},
			entry{id: "sponsor_address_1", label: "Address Line 1"},
			entry{id: "sponsor_address_2", label: "Address Line 2"},
			entry{id: "sponsor_city", label: "City"},
			entry{id: "sponsor_state", label: "State"},
			entry{id: "sponsor_zip", label: "Postal Code"},
			entry{id: "sponsor_email", label: "Email"},
			entry{id: "sponsor_phone", label: "Phone"},
		)
	case records.SponsorHost:
		out = append(out,
			entry{id: "host_name", label: "Host Name"},
			entry{id: "host_phone", label: "Host Phone"},
			entry{id: "host_company_name", label: "Company Name"},
			entry{id: "host_address_1", label: "Address Line 1"},
			entry{id: "host_address_2", label: "Address Line 2"},
			entry{id: "host_city", label: "City"},
			entry{id: "host_state", label: "State"},
			entry{id: "host_zip", label: "Postal Code"},
			entry{id: "host_email", label: "Email"},
			entry{id: "host_company_phone", label: "Company Phone"},
		)
	}
	return out
}

// needsAccommodation holds for tourists with a booked stay and for every
// other purpose of visit.
func needsAccommodation(rc records.Context) bool {
	ds := rc.Discriminators()
	if ds.Visa == records.VisaTourist {
		return ds.StayBooking == records.AnswerYes
	}
	return true
}

func accommodationFields(rc records.Context) []entry {
	switch rc.Discriminators().Visa {
	case records.VisaTourist:
		return []entry{
			{id: "hotel_name", label: "Hotel Name"},
			{id: "hotel_address_1", label: "Address Line 1"},
			{id: "hotel_address_2", label: "Address Line 2"},
			{id: "hotel_city", label: "City"},
			{id: "hotel_state", label: "State/Province"},
			{id: "hotel_zip", label: "Postal Code"},
			{id: "hotel_contact_number", label: "Hotel Contact"},
			{id: "hotel_booking_reference", label: "Booking Reference"},
		}
	case records.VisaFamilyFriends:
		return []entry{
			{id: "inviting_person_first_name", label: "Inviting Person First Name"},
			{id: "inviting_person_surname", label: "Inviting Person Surname"},
			{id: "inviting_person_email", label: "Inviting Person Email"},
			{id: "inviting_person_phone_code", label: "Inviting Person Phone Code"},
			{id: "inviting_person_phone", label: "Inviting Person Phone"},
			{id: "inviting_person_relationship", label: "Relationship"},
			{id: "inviting_person_address_1", label: "Address Line 1"},
			{id: "inviting_person_address_2", label: "Address Line 2"},
			{id: "inviting_person_city", label: "City"},
			{id: "inviting_person_state", label: "State/Province"},
			{id: "inviting_person_zip", label: "Postal Code"},
		}
	case records.VisaBusiness:
		return []entry{
			{id: "inviting_company_name", label: "Company Name"},
			{id: "inviting_company_contact_person", label: "Contact Person"},
			{id: "inviting_company_address_1", label: "Address Line 1"},
			{id: "inviting_company_address_2", label: "Address Line 2"},
			{id: "inviting_company_city", label: "City"},
			{id: "inviting_company_state", label: "State/Province"},
			{id: "inviting_company_zip", label: "Postal Code"},
			{id: "inviting_company_phone", label: "Company Phone"},
		}
	default:
		return nil
	}
}
