package summary

import (
	"fmt"
	"strings"

	"github.com/a3tai/visa-pdf-filler/internal/records"
)

// Status is the state of a checklist item.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusMissing   Status = "missing"
)

// CheckItem is one document requirement.
type CheckItem struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Files   []File `json:"files,omitempty"`
}

// Checklist is the document checklist of a record.
type Checklist struct {
	Items     []CheckItem `json:"items"`
	Completed int         `json:"completed"`
	Pending   int         `json:"pending"`
}

// Item returns the item with key.
func (c Checklist) Item(key string) (CheckItem, bool) {
	for _, item := range c.Items {
		if item.Key == key {
			return item, true
		}
	}
	return CheckItem{}, false
}

// Admin document categories.
const (
	DocEvisa       = "evisa"
	DocShareCode   = "share_code"
	DocApplication = "application"
	DocInsurance   = "insurance"
	DocHotel       = "hotel"
	DocAppointment = "appointment"
	DocFlight      = "flight"
)

// keyword filters over the client's booking uploads
var (
	bankKeywords       = []string{"bank", "statement"}
	creditCardKeywords = []string{"credit", "card", "cc"}
	payslipKeywords    = []string{"payslip", "salary"}
	employmentKeywords = []string{"employment", "letter", "leave", "noc"}
	taxKeywords        = []string{"tax", "accountant", "return", "self"}
	studentKeywords    = []string{"student", "school", "university", "enrollment"}
)

// BuildChecklist evaluates the document requirements of rc. Items that do
// not apply to the applicant's answers are left out.
func BuildChecklist(rc records.Context, docs []records.Document) Checklist {
	q := rc.Questions()
	ds := rc.Discriminators()
	byCategory := groupDocuments(docs)
	bookings := records.UploadPaths(q.Value("booking_documents_path"))

	items := []CheckItem{
		passportItem(rc.Applicant()),
		combinedItem("uk-evisa", "UK E-Visa", records.UploadPaths(q.Value("evisa_document_path")), byCategory[DocEvisa]),
		combinedItem("uk-share-code", "UK Share Code", records.UploadPaths(q.Value("share_code_document_path")), byCategory[DocShareCode]),
		evisaItem(q),
		photographsItem(q),
	}

	if ds.FingerprintsTaken == records.AnswerYes {
		items = append(items, namedUploadItem("previous-schengen-visa", "Previous Schengen Visa",
			records.UploadPaths(q.Value("schengen_visa_image")), "Previous Schengen Visa",
			"Client needs to upload previous Schengen visa"))
	}

	items = append(items, keywordItem("bank-statements", "Bank Statements", bookings, bankKeywords, "Client needs to upload"))

	if ds.HasCreditCard == records.AnswerYes {
		items = append(items, keywordItem("credit-card-statement", "Credit Card Statement", bookings, creditCardKeywords,
			"Client needs to upload credit card statement"))
	}

	switch ds.Occupation {
	case records.OccupationEmployee:
		items = append(items,
			keywordItem("payslips", "Payslips", bookings, payslipKeywords, "Client needs to upload"),
			keywordItem("employment", "Employment Status Letter", bookings, employmentKeywords, "Client needs to upload employment letter"))
	case records.OccupationSelfEmployed:
		items = append(items, keywordItem("employment", "Tax Return or Accountant Letter", bookings, taxKeywords,
			"Client needs to upload tax return/accountant letter"))
	case records.OccupationStudent:
		items = append(items, keywordItem("employment", "School/University Status Letter", bookings, studentKeywords,
			"Client needs to upload student status letter"))
	}

	items = append(items,
		adminItem("application-form", "Application Form", byCategory[DocApplication]),
		adminItem("insurance", "Travel Insurance", byCategory[DocInsurance]),
		adminItem("hotel", "Hotel Reservation", byCategory[DocHotel]),
		adminItem("appointment", "Appointment Confirmation", byCategory[DocAppointment]),
		adminItem("flight", "Flight Reservation", byCategory[DocFlight]),
	)

	c := Checklist{Items: items}
	for _, item := range items {
		if item.Status == StatusCompleted {
			c.Completed++
		} else {
			c.Pending++
		}
	}
	return c
}

func groupDocuments(docs []records.Document) map[string][]records.Document {
	out := make(map[string][]records.Document)
	for _, doc := range docs {
		category := strings.ToLower(strings.TrimSpace(doc.Category))
		out[category] = append(out[category], doc)
	}
	return out
}

func passportItem(applicant records.Record) CheckItem {
	item := CheckItem{Key: "passport", Title: "Passport"}
	number := firstSet(applicant, "passport_no", "passport_number")
	expiry := firstSet(applicant, "passport_expire", "passport_expiry")
	if number != "" && expiry != "" {
		item.Status = StatusCompleted
		item.Message = "Passport #" + number
		return item
	}
	item.Status = StatusMissing
	item.Message = "Missing passport information"
	return item
}

func firstSet(rec records.Record, keys ...string) string {
	for _, k := range keys {
		if v, ok := rec.Get(k); ok {
			return v
		}
	}
	return ""
}

// combinedItem merges client uploads and admin documents of one category.
func combinedItem(key, title string, paths []string, docs []records.Document) CheckItem {
	item := CheckItem{Key: key, Title: title}
	item.Files = append(item.Files, clientFiles(paths)...)
	for _, doc := range docs {
		item.Files = append(item.Files, adminFile(doc))
	}
	if len(item.Files) == 0 {
		item.Status = StatusPending
		item.Message = "Not applicable / Not uploaded"
		return item
	}
	item.Status = StatusCompleted
	item.Message = fmt.Sprintf("%s uploaded", plural(len(item.Files), "file"))
	return item
}

func evisaItem(q records.Record) CheckItem {
	paths := records.UploadPaths(q.Value("evisa_document_path"))
	if len(paths) == 0 {
		paths = records.UploadPaths(q.Value("share_code_document_path"))
	}
	return clientItem("evisa", "eVisa", clientFiles(paths), "file", "Client needs to upload")
}

func photographsItem(q records.Record) CheckItem {
	return namedUploadItem("photographs", "Photographs", records.UploadPaths(q.Value("schengen_visa_image")),
		"Passport Photo", "Client needs to upload")
}

// namedUploadItem lists client uploads under numbered display names.
func namedUploadItem(key, title string, paths []string, name, pending string) CheckItem {
	files := clientFiles(paths)
	for i := range files {
		files[i].Name = fmt.Sprintf("%s %d", name, i+1)
	}
	unit := "file"
	if key == "photographs" {
		unit = "photo"
	}
	return clientItem(key, title, files, unit, pending)
}

func keywordItem(key, title string, paths, keywords []string, pending string) CheckItem {
	var matched []string
	for _, p := range paths {
		lower := strings.ToLower(p)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, p)
				break
			}
		}
	}
	return clientItem(key, title, clientFiles(matched), "file", pending)
}

func clientItem(key, title string, files []File, unit, pending string) CheckItem {
	if len(files) == 0 {
		return CheckItem{Key: key, Title: title, Status: StatusPending, Message: pending}
	}
	return CheckItem{
		Key:     key,
		Title:   title,
		Status:  StatusCompleted,
		Message: fmt.Sprintf("Client uploaded (%s)", plural(len(files), unit)),
		Files:   files,
	}
}

func adminItem(key, title string, docs []records.Document) CheckItem {
	if len(docs) == 0 {
		return CheckItem{Key: key, Title: title, Status: StatusPending, Message: "Not yet uploaded"}
	}
	files := make([]File, 0, len(docs))
	for _, doc := range docs {
		files = append(files, adminFile(doc))
	}
	return CheckItem{
		Key:     key,
		Title:   title,
		Status:  StatusCompleted,
		Message: fmt.Sprintf("Uploaded (%s)", plural(len(docs), "file")),
		Files:   files,
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
