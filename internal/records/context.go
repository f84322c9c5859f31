package records

import (
	"fmt"
	"strings"
)

// Record prefixes accepted in mapping paths such as "applicant.first_name".
const (
	ScopeApplicant = "applicant"
	ScopeTraveler  = "traveler"
	ScopeDependent = "dependent"
	ScopeQuestions = "questions"
)

// Context is the immutable input of resolution and summary rendering.
// The discriminators are computed once, when the context is built.
type Context struct {
	recordType     RecordType
	traveler       Record
	dependent      Record
	questions      Record
	discriminators Discriminators
}

// NewContext builds a context for a traveler application.
func NewContext(traveler, questions Record) Context {
	return build(RecordTypeTraveler, traveler, Record{}, questions)
}

// NewDependentContext builds a context for a dependent travelling under traveler.
func NewDependentContext(traveler, dependent, questions Record) Context {
	return build(RecordTypeDependent, traveler, dependent, questions)
}

func build(rt RecordType, traveler, dependent, questions Record) Context {
	c := Context{
		recordType: rt,
		traveler:   traveler,
		dependent:  dependent,
		questions:  questions,
	}
	c.discriminators = Discriminators{
		Occupation:        ParseOccupationStatus(questions.Value("occupation_status")),
		Sponsor:           ParseSponsorType(questions.Value("travel_covered_by")),
		Visa:              ParseVisaCategory(c.Applicant().Value("visa_type")),
		StayBooking:       ParseYesNo(questions.Value("has_stay_booking")),
		FingerprintsTaken: ParseYesNo(questions.Value("fingerprints_taken")),
		HasCreditCard:     ParseYesNo(questions.Value("has_credit_card")),
		HasBookings:       ParseYesNo(questions.Value("has_bookings")),
	}
	return c
}

// RecordType reports whether the applicant is a traveler or a dependent.
func (c Context) RecordType() RecordType { return c.recordType }

// Traveler returns the traveler record.
func (c Context) Traveler() Record { return c.traveler }

// Dependent returns the dependent record and whether one is present.
func (c Context) Dependent() (Record, bool) {
	return c.dependent, c.recordType == RecordTypeDependent
}

// Questions returns the questionnaire answers, possibly empty.
func (c Context) Questions() Record { return c.questions }

// Discriminators returns the normalised branch selectors.
func (c Context) Discriminators() Discriminators { return c.discriminators }

// Applicant is the dependent when present, otherwise the traveler.
func (c Context) Applicant() Record {
	if c.recordType == RecordTypeDependent {
		return c.dependent
	}
	return c.traveler
}

// HasTraveler reports whether the traveler record is populated.
func (c Context) HasTraveler() bool {
	return !c.traveler.IsEmpty()
}

// Scope returns the record a path prefix refers to.
func (c Context) Scope(name string) (Record, error) {
	switch name {
	case ScopeApplicant:
		return c.Applicant(), nil
	case ScopeTraveler:
		return c.traveler, nil
	case ScopeDependent:
		return c.dependent, nil
	case ScopeQuestions:
		return c.questions, nil
	default:
		return Record{}, fmt.Errorf("unknown record %q", name)
	}
}

// Lookup resolves a "<record>.<column>" path. Unset values report ok=false.
func (c Context) Lookup(path string) (string, bool, error) {
	scope, column, err := SplitPath(path)
	if err != nil {
		return "", false, err
	}
	rec, err := c.Scope(scope)
	if err != nil {
		return "", false, err
	}
	v, ok := rec.Get(column)
	return v, ok, nil
}

// TravelCountry is the applicant's destination, falling back to the traveler's.
func (c Context) TravelCountry() string {
	if v, ok := c.Applicant().Get("travel_country"); ok {
		return v
	}
	return c.traveler.Value("travel_country")
}

// Locked reports the applicant's lock flag.
func (c Context) Locked() bool {
	switch strings.ToLower(c.Applicant().Value("is_locked")) {
	case "1", "true", "t", "yes":
		return true
	default:
		return false
	}
}

// WithLocked returns a copy of the context with the applicant's lock flag set.
func (c Context) WithLocked(locked bool) Context {
	flag := "0"
	if locked {
		flag = "1"
	}
	if c.recordType == RecordTypeDependent {
		return build(c.recordType, c.traveler, c.dependent.With("is_locked", flag), c.questions)
	}
	return build(c.recordType, c.traveler.With("is_locked", flag), c.dependent, c.questions)
}

// SplitPath validates and splits a "<record>.<column>" path.
func SplitPath(path string) (string, string, error) {
	scope, column, ok := strings.Cut(path, ".")
	if !ok || column == "" {
		return "", "", fmt.Errorf("path %q must have the form <record>.<column>", path)
	}
	switch scope {
	case ScopeApplicant, ScopeTraveler, ScopeDependent, ScopeQuestions:
		return scope, column, nil
	default:
		return "", "", fmt.Errorf("path %q: unknown record %q", path, scope)
	}
}
