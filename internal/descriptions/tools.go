package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	VisaFillFormDescription = `Fill a country's visa application form from a traveler or dependent record.

**When to use:** An applicant's data is complete and a ready-to-print application form is needed.

**Why it's useful:** Reads the record and the applicant's questionnaire, maps them onto the country template and writes the filled PDF into the output directory. Fields the template does not have are reported, never fatal.

**Examples:**
• Fill Austria for traveler 42: travelerId=42, travelCountry="Austria"
• Fill for a dependent and keep the form editable: travelerId=7, recordType="dependent", flatten=false

**Common workflows:**
1. Review: visa_record_summary → fix missing answers → visa_fill_form
2. Debugging: visa_resolve_fields → compare with visa_template_fields → visa_fill_form

**Best practices:** travelCountry must match the record's travel_country. Check missingFields in the response before sending the form to the applicant.`

	VisaResolveFieldsDescription = `Show the field values a fill would write, without producing a PDF.

**When to use:** Checking what a form will contain, or debugging a mapping for a country.

**Why it's useful:** Runs the same record lookup and mapping as visa_fill_form and returns the resolved field map as JSON. Fields whose source data is empty are omitted.

**Examples:**
• Preview Portugal for traveler 42: travelerId=42, travelCountry="Portugal"

**Best practices:** Absent fields mean the questionnaire answer is missing, not that the mapping failed.`

	VisaRecordSummaryDescription = `Render the admin summary of a traveler or dependent record.

**When to use:** Reviewing an application before filling or locking it.

**Why it's useful:** Groups the questionnaire answers into fixed categories, shows client uploads and admin documents, and returns a document checklist with completed, pending and missing items.

**Examples:**
• Summary for traveler 42: travelerId=42
• Summary for dependent 7: travelerId=7, recordType="dependent"`

	VisaListFormsDescription = `List the supported country forms and whether their templates are installed.

**When to use:** Before filling, to check which travelCountry values are accepted and which templates are present.`

	VisaTemplateFieldsDescription = `Inspect a country's PDF template against its mapping.

**When to use:** Installing a new template version or investigating missing fields after a fill.

**Why it's useful:** Lists the template's interactive fields with their types and options, the template fields no mapping rule writes, and the mapped names the template lacks.

**Examples:**
• Check the Malta template: travelCountry="Malta"`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"visa_fill_form":       VisaFillFormDescription,
	"visa_resolve_fields":  VisaResolveFieldsDescription,
	"visa_record_summary":  VisaRecordSummaryDescription,
	"visa_list_forms":      VisaListFormsDescription,
	"visa_template_fields": VisaTemplateFieldsDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
