package status

import "github.com/spec-kit/service-portal/internal/domain"

// Presentation is the visual treatment of a status.
type Presentation struct {
	Label string
	Color string
	Icon  string
}

var presentations = map[domain.Status]Presentation{
	domain.StatusNew:        {Label: "New", Color: "#2563eb", Icon: "circle-plus"},
	domain.StatusInProgress: {Label: "In Progress", Color: "#d97706", Icon: "clock"},
	domain.StatusClosed:     {Label: "Closed", Color: "#16a34a", Icon: "check-circle"},
	domain.StatusCompleted:  {Label: "Completed", Color: "#16a34a", Icon: "check-circle"},
}

var unknownPresentation = Presentation{Color: "#6b7280", Icon: "help-circle"}

// Present returns the presentation for s. Unknown values keep their raw text as label.
func Present(s domain.Status) Presentation {
	if p, ok := presentations[Normalize(s)]; ok {
		return p
	}
	p := unknownPresentation
	p.Label = string(s)
	if p.Label == "" {
		p.Label = "Unknown"
	}
	return p
}
