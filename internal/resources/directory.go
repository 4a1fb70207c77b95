// Package resources holds the read-only directory of support services:
// national hotlines that apply everywhere and county-level organizations.
// Lookups filter by county and need category; national entries are always
// included so no query ever returns an empty list.
package resources

import "strings"

// Categories a contact can serve. They mirror the support-need vocabulary.
const (
	CategoryEmergency  = "emergency"
	CategoryMedical    = "medical"
	CategoryLegal      = "legal"
	CategoryCounseling = "counseling"
	CategoryShelter    = "shelter"
)

// Contact is one support service entry.
type Contact struct {
	Name       string   `json:"name"`
	Phone      string   `json:"phone"`
	Categories []string `json:"categories"`
	County     string   `json:"county,omitempty"` // empty means nationwide
	Hours      string   `json:"hours,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// national hotlines are returned with every query.
var national = []Contact{
	{Name: "GBV Toll-Free Helpline (Healthcare Assistance Kenya)", Phone: "1195", Categories: []string{CategoryEmergency, CategoryCounseling}, Hours: "24/7", Notes: "Free from all networks"},
	{Name: "Police Emergency", Phone: "999 / 112", Categories: []string{CategoryEmergency}, Hours: "24/7"},
	{Name: "FIDA Kenya (legal aid for women)", Phone: "0800 720 553", Categories: []string{CategoryLegal}, Hours: "Mon-Fri 8am-5pm", Notes: "Free legal aid"},
	{Name: "Gender Violence Recovery Centre", Phone: "0709 983 000", Categories: []string{CategoryMedical, CategoryCounseling}, Hours: "24/7", Notes: "Free medical and psychosocial care"},
	{Name: "Befrienders Kenya", Phone: "0722 178 177", Categories: []string{CategoryCounseling}, Notes: "Emotional support line"},
}

// county-level services. The list grows by configuration review, not code
// change elsewhere.
var byCounty = map[string][]Contact{
	"Nairobi": {
		{Name: "Nairobi Women's Hospital GVRC", Phone: "0703 042 000", Categories: []string{CategoryMedical, CategoryCounseling}, County: "Nairobi", Hours: "24/7"},
		{Name: "Wangu Kanja Foundation", Phone: "0722 790 404", Categories: []string{CategoryCounseling, CategoryLegal}, County: "Nairobi", Notes: "Survivor-led support network"},
		{Name: "CREAW Kenya", Phone: "0720 357 664", Categories: []string{CategoryLegal, CategoryShelter}, County: "Nairobi"},
	},
	"Mombasa": {
		{Name: "Coast General GBV Centre", Phone: "0412 314 201", Categories: []string{CategoryMedical}, County: "Mombasa", Hours: "24/7"},
		{Name: "Sauti ya Wanawake", Phone: "0721 480 033", Categories: []string{CategoryCounseling, CategoryLegal}, County: "Mombasa"},
	},
	"Kisumu": {
		{Name: "KEMRI Wellness Centre Kisumu", Phone: "0572 021 778", Categories: []string{CategoryMedical, CategoryCounseling}, County: "Kisumu"},
	},
	"Nakuru": {
		{Name: "Nakuru GBV Rescue Centre", Phone: "0512 215 743", Categories: []string{CategoryShelter, CategoryCounseling}, County: "Nakuru"},
	},
}

// Directory answers contact lookups. It is immutable after construction and
// safe for concurrent use.
type Directory struct{}

// NewDirectory returns the built-in directory.
func NewDirectory() *Directory { return &Directory{} }

// Lookup returns contacts for the given county and category. Either filter
// may be empty. National entries always lead the result; county entries
// follow. Category filtering applies to both tiers.
func (d *Directory) Lookup(county, category string) []Contact {
	category = strings.ToLower(strings.TrimSpace(category))

	out := filterByCategory(national, category)
	if county != "" {
		out = append(out, filterByCategory(byCounty[county], category)...)
	}
	return out
}

func filterByCategory(contacts []Contact, category string) []Contact {
	if category == "" {
		return append([]Contact(nil), contacts...)
	}
	var out []Contact
	for _, c := range contacts {
		for _, cat := range c.Categories {
			if cat == category {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
