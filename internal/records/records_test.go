package records

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRowNormalisesColumns(t *testing.T) {
	rec := FromRow(map[string]interface{}{
		"id":             int64(42),
		"first_name":     []byte("Ana"),
		"dob":            time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC),
		"passport_issue": "0000-00-00",
		"email":          "",
		"address_line_2": nil,
		"is_locked":      true,
	})

	id, ok := rec.Int64("id")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "Ana", rec.Value("first_name"))
	assert.Equal(t, "1990-03-14", rec.Value("dob"))

	_, ok = rec.Get("passport_issue")
	assert.False(t, ok, "zero date must read as unset")
	_, ok = rec.Get("email")
	assert.False(t, ok, "empty string must read as unset")
	_, ok = rec.Get("address_line_2")
	assert.False(t, ok, "NULL must be absent")
	assert.Equal(t, "1", rec.Value("is_locked"))

	assert.NotContains(t, rec.Map(), "passport_issue")
}

func TestZeroDateVariantsAreUnset(t *testing.T) {
	rec := New(map[string]string{
		"plain":     "0000-00-00",
		"spaced":    "0000-00-00 00:00:00",
		"iso":       "0000-00-00T00:00:00",
		"iso_zoned": "0000-00-00T00:00:00Z",
		"real":      "2000-01-01T00:00:00",
	})

	for _, key := range []string{"plain", "spaced", "iso", "iso_zoned"} {
		_, ok := rec.Get(key)
		assert.False(t, ok, key)
	}
	assert.Equal(t, "2000-01-01T00:00:00", rec.Value("real"))
}

func TestRecordWithDoesNotMutate(t *testing.T) {
	original := New(map[string]string{"is_locked": "0"})
	next := original.With("is_locked", "1")

	assert.Equal(t, "0", original.Value("is_locked"))
	assert.Equal(t, "1", next.Value("is_locked"))
}

func TestParseRecordType(t *testing.T) {
	rt, err := ParseRecordType("")
	require.NoError(t, err)
	assert.Equal(t, RecordTypeTraveler, rt)

	rt, err = ParseRecordType("Dependent")
	require.NoError(t, err)
	assert.Equal(t, RecordTypeDependent, rt)
	assert.Equal(t, "dependents", rt.Table())

	_, err = ParseRecordType("spouse")
	assert.Error(t, err)
}

func TestDiscriminatorParsing(t *testing.T) {
	assert.Equal(t, OccupationSelfEmployed, ParseOccupationStatus("Self-Employed / Freelancer"))
	assert.Equal(t, OccupationStudent, ParseOccupationStatus(" student "))
	assert.Equal(t, OccupationUnknown, ParseOccupationStatus("Astronaut"))

	assert.Equal(t, SponsorFamily, ParseSponsorType("Family Member / Family Member in the EU"))
	assert.Equal(t, SponsorHost, ParseSponsorType("Host / Company / Organisation"))
	assert.Equal(t, SponsorSelf, ParseSponsorType("Myself"))

	assert.Equal(t, VisaTourist, ParseVisaCategory("Schengen Tourist Visa"))
	assert.Equal(t, VisaFamilyFriends, ParseVisaCategory("Visiting Friends"))
	assert.Equal(t, VisaBusiness, ParseVisaCategory("Business"))
	assert.Equal(t, VisaOther, ParseVisaCategory("Medical"))
	assert.Equal(t, VisaUnknown, ParseVisaCategory(""))

	assert.Equal(t, AnswerYes, ParseYesNo("YES"))
	assert.Equal(t, AnswerUnknown, ParseYesNo("maybe"))
}

func TestContextApplicantAndDiscriminators(t *testing.T) {
	traveler := New(map[string]string{"first_name": "Ana", "visa_type": "Tourist", "travel_country": "Portugal"})
	dependent := New(map[string]string{"first_name": "Rui", "visa_type": "Business", "traveler_id": "1"})
	questions := New(map[string]string{"occupation_status": "Student", "has_stay_booking": "Yes"})

	ctx := NewContext(traveler, questions)
	assert.Equal(t, "Ana", ctx.Applicant().Value("first_name"))
	assert.Equal(t, VisaTourist, ctx.Discriminators().Visa)
	assert.Equal(t, "student", ctx.Discriminators().Value(DiscOccupationStatus))
	assert.Equal(t, "yes", ctx.Discriminators().Value(DiscStayBooking))
	_, hasDependent := ctx.Dependent()
	assert.False(t, hasDependent)

	dep := NewDependentContext(traveler, dependent, questions)
	assert.Equal(t, "Rui", dep.Applicant().Value("first_name"))
	assert.Equal(t, VisaBusiness, dep.Discriminators().Visa)
	assert.Equal(t, "Portugal", dep.TravelCountry(), "falls back to the traveler's country")
}

func TestContextLookup(t *testing.T) {
	ctx := NewContext(New(map[string]string{"first_name": "Ana"}), New(nil))

	v, ok, err := ctx.Lookup("applicant.first_name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ana", v)

	_, ok, err = ctx.Lookup("questions.company_name")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ctx.Lookup("employer.name")
	assert.Error(t, err)
	_, _, err = ctx.Lookup("first_name")
	assert.Error(t, err)
}

func TestWithLockedReturnsNewContext(t *testing.T) {
	ctx := NewContext(New(map[string]string{"first_name": "Ana"}), New(nil))
	locked := ctx.WithLocked(true)

	assert.False(t, ctx.Locked())
	assert.True(t, locked.Locked())
	assert.False(t, locked.WithLocked(false).Locked())
}

func TestUploadPaths(t *testing.T) {
	assert.Equal(t, []string{"a.pdf", "b.png"}, UploadPaths(`["a.pdf", " ", "b.png"]`))
	assert.Equal(t, []string{"uploads/visa.jpg"}, UploadPaths("uploads/visa.jpg"))
	assert.Nil(t, UploadPaths("  "))
	assert.Equal(t, "statement.pdf", BaseName(`docs\bank\statement.pdf`))
}
