package mapping

// Slot is one position of the optin sequence. Days 8 and 15 send three times.
type Slot struct {
	Suffix  string // "8a"
	Number  string // "8"
	Variant string // "Morning"
}

// Label is the slot part of a remote key, e.g. "8 Morning"
func (s Slot) Label() string {
	if s.Variant == "" {
		return s.Number
	}
	return s.Number + " " + s.Variant
}

// Slots lists the 19 slots in send order
var Slots = []Slot{
	{Suffix: "1", Number: "1"},
	{Suffix: "2", Number: "2"},
	{Suffix: "3", Number: "3"},
	{Suffix: "4", Number: "4"},
	{Suffix: "5", Number: "5"},
	{Suffix: "6", Number: "6"},
	{Suffix: "7", Number: "7"},
	{Suffix: "8a", Number: "8", Variant: "Morning"},
	{Suffix: "8b", Number: "8", Variant: "Afternoon"},
	{Suffix: "8c", Number: "8", Variant: "Evening"},
	{Suffix: "9", Number: "9"},
	{Suffix: "10", Number: "10"},
	{Suffix: "11", Number: "11"},
	{Suffix: "12", Number: "12"},
	{Suffix: "13", Number: "13"},
	{Suffix: "14", Number: "14"},
	{Suffix: "15a", Number: "15", Variant: "Morning"},
	{Suffix: "15b", Number: "15", Variant: "Afternoon"},
	{Suffix: "15c", Number: "15", Variant: "Evening"},
}
