package report

// FormType is a report category with its display label and icon name. The
// table is process-wide, read-only, and built once at startup; there is no
// runtime mutation.
type FormType struct {
	Key   string
	Label string
	Icon  string
}

var genericFormType = FormType{Label: "Report", Icon: "report"}

var formTypes = map[string]FormType{
	"sighting":    {Key: "sighting", Label: "Sighting", Icon: "eye"},
	"hazard":      {Key: "hazard", Label: "Hazard", Icon: "warning"},
	"damage":      {Key: "damage", Label: "Property Damage", Icon: "house"},
	"wellbeing":   {Key: "wellbeing", Label: "Wellbeing Check", Icon: "heart"},
	"environment": {Key: "environment", Label: "Environmental", Icon: "leaf"},
}

// LookupFormType resolves a category key. Unknown keys resolve to a generic
// label rather than an error; callers render whatever comes back.
func LookupFormType(key string) FormType {
	if ft, ok := formTypes[key]; ok {
		return ft
	}
	ft := genericFormType
	ft.Key = key
	return ft
}

// FormTypes returns the known categories in a fresh slice.
func FormTypes() []FormType {
	out := make([]FormType, 0, len(formTypes))
	for _, ft := range formTypes {
		out = append(out, ft)
	}
	return out
}
