package catalog

// Template seeds a new project's name and description. It is advisory only:
// no structured step content is copied into the project.
type Template struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Sectors     []string `json:"sectors"`
	Popularity  int      `json:"popularity" minimum:"0" maximum:"100"`
	Preview     string   `json:"preview"`
}

var templates = []Template{
	{
		ID:          "blank",
		Name:        "Blank Program",
		Description: "Start from scratch with an empty seven step workflow",
		Category:    "general",
		Sectors:     []string{},
		Popularity:  55,
		Preview:     "previews/blank.png",
	},
	{
		ID:          "girls-literacy",
		Name:        "Girls' Literacy Program",
		Description: "Improve foundational reading skills for out-of-school girls",
		Category:    "literacy",
		Sectors:     []string{"primary-education", "gender"},
		Popularity:  92,
		Preview:     "previews/girls-literacy.png",
	},
	{
		ID:          "teacher-training",
		Name:        "Teacher Training Initiative",
		Description: "Strengthen pedagogy and classroom practice for government school teachers",
		Category:    "capacity-building",
		Sectors:     []string{"teacher-development"},
		Popularity:  84,
		Preview:     "previews/teacher-training.png",
	},
	{
		ID:          "digital-classroom",
		Name:        "Digital Classroom Access",
		Description: "Bring low-cost digital learning tools to rural classrooms",
		Category:    "edtech",
		Sectors:     []string{"secondary-education", "technology"},
		Popularity:  77,
		Preview:     "previews/digital-classroom.png",
	},
	{
		ID:          "dropout-prevention",
		Name:        "Dropout Prevention",
		Description: "Keep at-risk adolescents enrolled through mentoring and family outreach",
		Category:    "retention",
		Sectors:     []string{"secondary-education", "community"},
		Popularity:  68,
		Preview:     "previews/dropout-prevention.png",
	},
}

// Templates returns the template catalog.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// TemplateByID resolves a template.
func TemplateByID(id string) (Template, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
