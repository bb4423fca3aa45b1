package email

// Email is one outbound message. HTMLBody wins over Body when both are set.
type Email struct {
	From     string
	To       []string
	Cc       []string
	Subject  string
	Body     string
	HTMLBody string
}

// TemplateData is passed to html/template.
type TemplateData map[string]interface{}
